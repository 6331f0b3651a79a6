package model

import (
	"time"

	"github.com/google/uuid"
)

// Test is an imported question set that candidates can attempt.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	QuestionCount   int       `json:"question_count"`
	DurationMinutes int       `json:"duration_minutes"`
	Year            *int      `json:"year,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TestPaper is a test together with its ordered questions.
// It is cached in Redis and never sent to candidates as-is.
type TestPaper struct {
	Test      Test       `json:"test"`
	Questions []Question `json:"questions"`
}

// ImportTestRequest is the multipart form accompanying a question file upload.
type ImportTestRequest struct {
	Name            string `form:"name" json:"name" binding:"required,min=1,max=255"`
	DurationMinutes int    `form:"duration_minutes" json:"duration_minutes" binding:"required,min=1,max=480"`
	Year            *int   `form:"year" json:"year" binding:"omitempty,min=1900,max=2100"`
}
