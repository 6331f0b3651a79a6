package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves all questions of a test, ordered by question number.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_number, question_text, set_name, passage_text,
		        option_a, option_b, option_c, option_d, option_e, correct_answer, explanation
		 FROM questions WHERE test_id = $1
		 ORDER BY question_number, position`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.QuestionNumber, &q.QuestionText, &q.SetName, &q.PassageText,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.OptionE, &q.CorrectAnswer, &q.Explanation); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// copier is satisfied by both pgx.Tx and *pgxpool.Pool.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyQuestions(ctx context.Context, db copier, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	_, err := db.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "test_id", "position", "question_number", "question_text", "set_name", "passage_text",
			"option_a", "option_b", "option_c", "option_d", "option_e", "correct_answer", "explanation"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.ID, q.TestID, i, q.QuestionNumber, q.QuestionText, q.SetName, q.PassageText,
				q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE, q.CorrectAnswer, q.Explanation}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy questions: %w", err)
	}
	return nil
}
