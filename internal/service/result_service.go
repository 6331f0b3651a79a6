package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/scoring"
)

// ResultView is the review page summary of a submitted attempt.
type ResultView struct {
	Test       model.Test        `json:"test"`
	Attempt    model.ExamAttempt `json:"attempt"`
	Result     model.ExamResult  `json:"result"`
	Percentage float64           `json:"percentage"`
	Accuracy   float64           `json:"accuracy"`
}

// ResultService serves results and solutions of submitted attempts.
type ResultService struct {
	papers    PaperSource
	attempts  AttemptStore
	responses ResponseStore
	results   ResultStore
	log       zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(papers PaperSource, attempts AttemptStore, responses ResponseStore, results ResultStore, log zerolog.Logger) *ResultService {
	return &ResultService{
		papers:    papers,
		attempts:  attempts,
		responses: responses,
		results:   results,
		log:       log.With().Str("component", "result_service").Logger(),
	}
}

// Get returns the result of a submitted attempt.
func (s *ResultService) Get(ctx context.Context, attemptID uuid.UUID) (*ResultView, error) {
	attempt, err := s.submittedAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	result, err := s.results.GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	paper, err := s.papers.GetPaper(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}

	return &ResultView{
		Test:       paper.Test,
		Attempt:    *attempt,
		Result:     *result,
		Percentage: scoring.Percentage(result.TotalScore, result.MaxScore),
		Accuracy:   scoring.Accuracy(result.CorrectCount, result.IncorrectCount),
	}, nil
}

// Solutions returns every question with the committed answer, the answer key
// and the explanation, in question order.
func (s *ResultService) Solutions(ctx context.Context, attemptID uuid.UUID) ([]model.SolutionItem, error) {
	attempt, err := s.submittedAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	paper, err := s.papers.GetPaper(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	saved, err := s.responses.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	byQuestion := make(map[uuid.UUID]*model.ExamResponse, len(saved))
	for i := range saved {
		byQuestion[saved[i].QuestionID] = &saved[i]
	}

	items := make([]model.SolutionItem, len(paper.Questions))
	for i := range paper.Questions {
		q := &paper.Questions[i]
		r := byQuestion[q.ID]
		item := model.SolutionItem{
			Question: *q,
			Outcome:  string(scoring.Classify(q, r)),
		}
		if r != nil {
			item.SelectedAnswer = r.SelectedAnswer
			item.IsMarkedForReview = r.IsMarkedForReview
			item.TimeSpentSeconds = r.TimeSpentSeconds
		}
		items[i] = item
	}
	return items, nil
}

// ListByTest returns one page of a test's results, best score first, and the
// total number of results.
func (s *ResultService) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]model.TestResultRow, int, error) {
	if _, err := s.papers.GetPaper(ctx, testID); err != nil {
		return nil, 0, err
	}
	rows, err := s.results.ListByTest(ctx, testID)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	total := len(rows)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return rows[start:end], total, nil
}

func (s *ResultService) submittedAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ExamAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsSubmitted {
		return nil, ErrAttemptNotFinished
	}
	return attempt, nil
}
