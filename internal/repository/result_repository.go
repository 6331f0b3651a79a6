package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// insertResult writes res once per attempt. If a result already exists it is
// loaded into res and left untouched.
func insertResult(ctx context.Context, tx pgx.Tx, res *model.ExamResult) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO exam_results (attempt_id, correct_count, incorrect_count, unanswered_count,
		                           total_score, max_score, percentile)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (attempt_id) DO NOTHING
		 RETURNING id, created_at`,
		res.AttemptID, res.CorrectCount, res.IncorrectCount, res.UnansweredCount,
		res.TotalScore, res.MaxScore, res.Percentile,
	).Scan(&res.ID, &res.CreatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return scanResult(tx.QueryRow(ctx, selectResultSQL, res.AttemptID), res)
}

const selectResultSQL = `
	SELECT id, attempt_id, correct_count, incorrect_count, unanswered_count,
	       total_score, max_score, percentile, created_at
	FROM exam_results WHERE attempt_id = $1`

func scanResult(row pgx.Row, res *model.ExamResult) error {
	return row.Scan(&res.ID, &res.AttemptID, &res.CorrectCount, &res.IncorrectCount, &res.UnansweredCount,
		&res.TotalScore, &res.MaxScore, &res.Percentile, &res.CreatedAt)
}

// GetByAttempt retrieves the result of an attempt.
func (r *ResultRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	if err := scanResult(r.pool.QueryRow(ctx, selectResultSQL, attemptID), res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListScoresByTest returns the total scores of every other submitted attempt
// of a test.
func (r *ResultRepository) ListScoresByTest(ctx context.Context, testID, excludeAttemptID uuid.UUID) ([]float64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT er.total_score
		 FROM exam_results er
		 JOIN exam_attempts a ON a.id = er.attempt_id
		 WHERE a.test_id = $1 AND a.id <> $2`, testID, excludeAttemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ListByTest retrieves every result of a test with its attempt timing,
// best score first.
func (r *ResultRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.TestResultRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT er.id, er.attempt_id, er.correct_count, er.incorrect_count, er.unanswered_count,
		        er.total_score, er.max_score, er.percentile, er.created_at,
		        a.start_time, a.end_time, a.duration_spent_seconds, a.is_timeout
		 FROM exam_results er
		 JOIN exam_attempts a ON a.id = er.attempt_id
		 WHERE a.test_id = $1
		 ORDER BY er.total_score DESC, er.created_at`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.TestResultRow{}
	for rows.Next() {
		var x model.TestResultRow
		if err := rows.Scan(&x.ID, &x.AttemptID, &x.CorrectCount, &x.IncorrectCount, &x.UnansweredCount,
			&x.TotalScore, &x.MaxScore, &x.Percentile, &x.CreatedAt,
			&x.StartTime, &x.EndTime, &x.DurationSpentSeconds, &x.IsTimeout); err != nil {
			return nil, err
		}
		results = append(results, x)
	}
	return results, rows.Err()
}
