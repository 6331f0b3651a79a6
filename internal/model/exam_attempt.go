package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamAttempt is one candidate's timed run through a test.
type ExamAttempt struct {
	ID                       uuid.UUID  `json:"id"`
	TestID                   uuid.UUID  `json:"test_id"`
	StartTime                time.Time  `json:"start_time"`
	EndTime                  *time.Time `json:"end_time,omitempty"`
	DurationAllocatedMinutes int        `json:"duration_allocated_minutes"`
	DurationSpentSeconds     int        `json:"duration_spent_seconds"`
	IsSubmitted              bool       `json:"is_submitted"`
	IsTimeout                bool       `json:"is_timeout"`
}

// ExamResponse is the committed answer state of one question within an attempt.
// A nil SelectedAnswer means the question is unanswered. Revision grows by one
// with every committed change and orders queued writes.
type ExamResponse struct {
	ID                uuid.UUID `json:"id"`
	AttemptID         uuid.UUID `json:"attempt_id"`
	QuestionID        uuid.UUID `json:"question_id"`
	SelectedAnswer    *string   `json:"selected_answer"`
	IsMarkedForReview bool      `json:"is_marked_for_review"`
	TimeSpentSeconds  int       `json:"time_spent_seconds"`
	Revision          int64     `json:"revision"`
}

// IsAnswered reports whether a non-empty answer has been committed.
func (r *ExamResponse) IsAnswered() bool {
	return r != nil && r.SelectedAnswer != nil && *r.SelectedAnswer != ""
}

// NavigateRequest moves the session to a question index.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// StageRequest stages an option for the current question.
type StageRequest struct {
	Option string `json:"option" binding:"required,len=1"`
}

// ZoomRequest changes the question panel zoom level.
type ZoomRequest struct {
	Level int `json:"level" binding:"required"`
}
