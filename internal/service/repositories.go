package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// The interfaces below are satisfied by the pgx repositories in
// internal/repository and by in-memory fakes in tests.

type TestStore interface {
	CreateWithQuestions(ctx context.Context, t *model.Test, questions []model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	List(ctx context.Context) ([]model.Test, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type QuestionStore interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

type AttemptStore interface {
	Create(ctx context.Context, a *model.ExamAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, endTime time.Time, spentSeconds int, isTimeout bool, res *model.ExamResult) error
}

type ResponseStore interface {
	CreateBatch(ctx context.Context, responses []model.ExamResponse) error
	UpsertBatch(ctx context.Context, responses []model.ExamResponse) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ExamResponse, error)
}

type ResultStore interface {
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ExamResult, error)
	ListScoresByTest(ctx context.Context, testID, excludeAttemptID uuid.UUID) ([]float64, error)
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.TestResultRow, error)
}
