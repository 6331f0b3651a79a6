package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// store is an in-memory stand-in for the pgx repositories.
type store struct {
	mu        sync.Mutex
	tests     map[uuid.UUID]model.Test
	questions map[uuid.UUID][]model.Question
	attempts  map[uuid.UUID]model.ExamAttempt
	responses map[uuid.UUID]map[uuid.UUID]model.ExamResponse
	results   map[uuid.UUID]model.ExamResult
}

func newStore() *store {
	return &store{
		tests:     make(map[uuid.UUID]model.Test),
		questions: make(map[uuid.UUID][]model.Question),
		attempts:  make(map[uuid.UUID]model.ExamAttempt),
		responses: make(map[uuid.UUID]map[uuid.UUID]model.ExamResponse),
		results:   make(map[uuid.UUID]model.ExamResult),
	}
}

type testRepo struct{ s *store }

func (r testRepo) CreateWithQuestions(_ context.Context, t *model.Test, qs []model.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.CreatedAt = time.Now()
	r.s.tests[t.ID] = *t
	r.s.questions[t.ID] = append([]model.Question(nil), qs...)
	return nil
}

func (r testRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r testRepo) List(context.Context) ([]model.Test, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Test{}
	for _, t := range r.s.tests {
		out = append(out, t)
	}
	return out, nil
}

func (r testRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tests[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tests, id)
	delete(r.s.questions, id)
	return nil
}

type questionRepo struct{ s *store }

func (r questionRepo) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.Question(nil), r.s.questions[testID]...), nil
}

type attemptRepo struct{ s *store }

func (r attemptRepo) Create(_ context.Context, a *model.ExamAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = uuid.New()
	a.StartTime = time.Now()
	r.s.attempts[a.ID] = *a
	return nil
}

func (r attemptRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r attemptRepo) MarkSubmitted(_ context.Context, id uuid.UUID, end time.Time, spent int, isTimeout bool, res *model.ExamResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored, ok := r.s.results[id]; ok {
		*res = stored
		return nil
	}
	a.EndTime = &end
	a.DurationSpentSeconds = spent
	a.IsSubmitted = true
	a.IsTimeout = isTimeout
	r.s.attempts[id] = a

	res.AttemptID = id
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	r.s.results[id] = *res
	return nil
}

type responseRepo struct{ s *store }

func (r responseRepo) CreateBatch(ctx context.Context, rs []model.ExamResponse) error {
	return r.UpsertBatch(ctx, rs)
}

func (r responseRepo) UpsertBatch(_ context.Context, rs []model.ExamResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, resp := range rs {
		byQ, ok := r.s.responses[resp.AttemptID]
		if !ok {
			byQ = make(map[uuid.UUID]model.ExamResponse)
			r.s.responses[resp.AttemptID] = byQ
		}
		byQ[resp.QuestionID] = resp
	}
	return nil
}

func (r responseRepo) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.ExamResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.ExamResponse
	for _, resp := range r.s.responses[attemptID] {
		out = append(out, resp)
	}
	return out, nil
}

type resultRepo struct{ s *store }

func (r resultRepo) GetByAttempt(_ context.Context, attemptID uuid.UUID) (*model.ExamResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.results[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &res, nil
}

func (r resultRepo) ListScoresByTest(_ context.Context, testID, exclude uuid.UUID) ([]float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []float64
	for attemptID, res := range r.s.results {
		if attemptID != exclude && r.s.attempts[attemptID].TestID == testID {
			out = append(out, res.TotalScore)
		}
	}
	return out, nil
}

func (r resultRepo) ListByTest(_ context.Context, testID uuid.UUID) ([]model.TestResultRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.TestResultRow{}
	for attemptID, res := range r.s.results {
		a := r.s.attempts[attemptID]
		if a.TestID == testID {
			out = append(out, model.TestResultRow{ExamResult: res, StartTime: a.StartTime, EndTime: a.EndTime})
		}
	}
	return out, nil
}
