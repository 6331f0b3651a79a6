package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// ResponseRepository handles exam response data access.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

const upsertResponseSQL = `
	INSERT INTO exam_responses (id, attempt_id, question_id, selected_answer, is_marked_for_review, time_spent_seconds, revision)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (attempt_id, question_id) DO UPDATE
	SET selected_answer = EXCLUDED.selected_answer,
	    is_marked_for_review = EXCLUDED.is_marked_for_review,
	    time_spent_seconds = EXCLUDED.time_spent_seconds,
	    revision = GREATEST(exam_responses.revision, EXCLUDED.revision),
	    updated_at = NOW()`

// CreateBatch seeds the empty responses of a new attempt with COPY.
func (r *ResponseRepository) CreateBatch(ctx context.Context, responses []model.ExamResponse) error {
	if len(responses) == 0 {
		return nil
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"exam_responses"},
		[]string{"id", "attempt_id", "question_id", "selected_answer", "is_marked_for_review", "time_spent_seconds"},
		pgx.CopyFromSlice(len(responses), func(i int) ([]any, error) {
			x := responses[i]
			return []any{x.ID, x.AttemptID, x.QuestionID, x.SelectedAnswer, x.IsMarkedForReview, x.TimeSpentSeconds}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy responses: %w", err)
	}
	return nil
}

// UpsertBatch writes every response keyed by (attempt_id, question_id) in a
// single transaction.
func (r *ResponseRepository) UpsertBatch(ctx context.Context, responses []model.ExamResponse) error {
	if len(responses) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, x := range responses {
		batch.Queue(upsertResponseSQL, x.ID, x.AttemptID, x.QuestionID, x.SelectedAnswer, x.IsMarkedForReview, x.TimeSpentSeconds, x.Revision)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert responses: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateIfActive writes one response unless its attempt is already submitted
// or the stored row carries the same or a newer revision. It reports whether
// a row was written.
func (r *ResponseRepository) UpdateIfActive(ctx context.Context, x model.ExamResponse) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_responses er
		 SET selected_answer = $3, is_marked_for_review = $4, time_spent_seconds = $5,
		     revision = $6, updated_at = NOW()
		 FROM exam_attempts a
		 WHERE er.attempt_id = $1 AND er.question_id = $2
		   AND a.id = er.attempt_id AND NOT a.is_submitted
		   AND er.revision < $6`,
		x.AttemptID, x.QuestionID, x.SelectedAnswer, x.IsMarkedForReview, x.TimeSpentSeconds, x.Revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByAttempt retrieves all responses of an attempt.
func (r *ResponseRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ExamResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_answer, is_marked_for_review, time_spent_seconds, revision
		 FROM exam_responses WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.ExamResponse
	for rows.Next() {
		var x model.ExamResponse
		if err := rows.Scan(&x.ID, &x.AttemptID, &x.QuestionID, &x.SelectedAnswer, &x.IsMarkedForReview, &x.TimeSpentSeconds, &x.Revision); err != nil {
			return nil, err
		}
		responses = append(responses, x)
	}
	return responses, rows.Err()
}
