package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt and fills in its ID and start time.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (test_id, duration_allocated_minutes)
		 VALUES ($1, $2)
		 RETURNING id, start_time`,
		a.TestID, a.DurationAllocatedMinutes,
	).Scan(&a.ID, &a.StartTime)
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, start_time, end_time, duration_allocated_minutes,
		        duration_spent_seconds, is_submitted, is_timeout
		 FROM exam_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.TestID, &a.StartTime, &a.EndTime, &a.DurationAllocatedMinutes,
		&a.DurationSpentSeconds, &a.IsSubmitted, &a.IsTimeout)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MarkSubmitted closes an attempt and stores its result in one transaction,
// so a submitted attempt never lacks a result. When the attempt was already
// submitted the stored result is loaded into res instead.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, endTime time.Time, spentSeconds int, isTimeout bool, res *model.ExamResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE exam_attempts
		 SET end_time = $1, duration_spent_seconds = $2, is_submitted = TRUE, is_timeout = $3
		 WHERE id = $4 AND NOT is_submitted`,
		endTime, spentSeconds, isTimeout, id)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Missing attempts surface as pgx.ErrNoRows.
		var submitted bool
		if err := tx.QueryRow(ctx, `SELECT is_submitted FROM exam_attempts WHERE id = $1`, id).Scan(&submitted); err != nil {
			return err
		}
	}

	res.AttemptID = id
	if err := insertResult(ctx, tx, res); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return tx.Commit(ctx)
}
