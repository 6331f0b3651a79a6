package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// CreateWithQuestions inserts a test and all of its questions in one
// transaction. t.ID must already be set; CreatedAt is filled in.
func (r *TestRepository) CreateWithQuestions(ctx context.Context, t *model.Test, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (id, name, question_count, duration_minutes, year)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.ID, t.Name, t.QuestionCount, t.DurationMinutes, t.Year,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	if err := copyQuestions(ctx, tx, questions); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a test by ID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, question_count, duration_minutes, year, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.QuestionCount, &t.DurationMinutes, &t.Year, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List retrieves all tests, newest first.
func (r *TestRepository) List(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, question_count, duration_minutes, year, created_at
		 FROM tests
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Name, &t.QuestionCount, &t.DurationMinutes, &t.Year, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// Delete removes a test; questions, attempts, responses and results cascade.
// It returns pgx.ErrNoRows when no test matched.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
