package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is the write-once score summary of a submitted attempt.
type ExamResult struct {
	ID              uuid.UUID `json:"id"`
	AttemptID       uuid.UUID `json:"attempt_id"`
	CorrectCount    int       `json:"correct_count"`
	IncorrectCount  int       `json:"incorrect_count"`
	UnansweredCount int       `json:"unanswered_count"`
	TotalScore      float64   `json:"total_score"`
	MaxScore        float64   `json:"max_score"`
	Percentile      *float64  `json:"percentile,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TestResultRow is a result joined with its attempt for per-test listings.
type TestResultRow struct {
	ExamResult
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	DurationSpentSeconds int        `json:"duration_spent_seconds"`
	IsTimeout            bool       `json:"is_timeout"`
}

// SolutionItem pairs a question with the candidate's committed response for review.
type SolutionItem struct {
	Question          Question `json:"question"`
	SelectedAnswer    *string  `json:"selected_answer"`
	IsMarkedForReview bool     `json:"is_marked_for_review"`
	TimeSpentSeconds  int      `json:"time_spent_seconds"`
	Outcome           string   `json:"outcome"`
}

// AdminLoginRequest is the payload for the admin login.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,min=6,max=128"`
}
