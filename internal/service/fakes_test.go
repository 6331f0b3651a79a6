package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// memDB is an in-memory stand-in for the pgx repositories.
type memDB struct {
	mu        sync.Mutex
	tests     map[uuid.UUID]model.Test
	questions map[uuid.UUID][]model.Question
	attempts  map[uuid.UUID]model.ExamAttempt
	responses map[uuid.UUID]map[uuid.UUID]model.ExamResponse
	results   map[uuid.UUID]model.ExamResult

	failUpsert int
	failSubmit int
	upserts    int

	// onUpsert runs before UpsertBatch applies, outside the lock.
	onUpsert func()
}

func newMemDB() *memDB {
	return &memDB{
		tests:     make(map[uuid.UUID]model.Test),
		questions: make(map[uuid.UUID][]model.Question),
		attempts:  make(map[uuid.UUID]model.ExamAttempt),
		responses: make(map[uuid.UUID]map[uuid.UUID]model.ExamResponse),
		results:   make(map[uuid.UUID]model.ExamResult),
	}
}

var errInjected = errors.New("injected failure")

type memTests struct{ db *memDB }

func (m memTests) CreateWithQuestions(_ context.Context, t *model.Test, qs []model.Question) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t.CreatedAt = time.Now()
	m.db.tests[t.ID] = *t
	m.db.questions[t.ID] = append([]model.Question(nil), qs...)
	return nil
}

func (m memTests) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m memTests) List(context.Context) ([]model.Test, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Test{}
	for _, t := range m.db.tests {
		out = append(out, t)
	}
	return out, nil
}

func (m memTests) Delete(_ context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.tests[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.db.tests, id)
	delete(m.db.questions, id)
	return nil
}

type memQuestions struct{ db *memDB }

func (m memQuestions) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return append([]model.Question(nil), m.db.questions[testID]...), nil
}

type memAttempts struct{ db *memDB }

func (m memAttempts) Create(_ context.Context, a *model.ExamAttempt) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a.ID = uuid.New()
	a.StartTime = time.Now()
	m.db.attempts[a.ID] = *a
	return nil
}

func (m memAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

// MarkSubmitted updates the attempt and stores the result together, or
// neither when a failure is injected.
func (m memAttempts) MarkSubmitted(_ context.Context, id uuid.UUID, end time.Time, spent int, isTimeout bool, res *model.ExamResult) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failSubmit > 0 {
		m.db.failSubmit--
		return errInjected
	}
	a, ok := m.db.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored, ok := m.db.results[id]; ok {
		*res = stored
		return nil
	}
	a.EndTime = &end
	a.DurationSpentSeconds = spent
	a.IsSubmitted = true
	a.IsTimeout = isTimeout
	m.db.attempts[id] = a

	res.AttemptID = id
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	m.db.results[id] = *res
	return nil
}

type memResponses struct{ db *memDB }

func (m memResponses) CreateBatch(_ context.Context, rs []model.ExamResponse) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range rs {
		m.put(r)
	}
	return nil
}

func (m memResponses) UpsertBatch(_ context.Context, rs []model.ExamResponse) error {
	if m.db.onUpsert != nil {
		m.db.onUpsert()
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failUpsert > 0 {
		m.db.failUpsert--
		return errInjected
	}
	m.db.upserts++
	for _, r := range rs {
		m.put(r)
	}
	return nil
}

func (m memResponses) put(r model.ExamResponse) {
	byQ, ok := m.db.responses[r.AttemptID]
	if !ok {
		byQ = make(map[uuid.UUID]model.ExamResponse)
		m.db.responses[r.AttemptID] = byQ
	}
	byQ[r.QuestionID] = r
}

func (m memResponses) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.ExamResponse, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []model.ExamResponse
	for _, r := range m.db.responses[attemptID] {
		out = append(out, r)
	}
	return out, nil
}

type memResults struct{ db *memDB }

func (m memResults) GetByAttempt(_ context.Context, attemptID uuid.UUID) (*model.ExamResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.results[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (m memResults) ListScoresByTest(_ context.Context, testID, exclude uuid.UUID) ([]float64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []float64
	for attemptID, r := range m.db.results {
		if attemptID != exclude && m.db.attempts[attemptID].TestID == testID {
			out = append(out, r.TotalScore)
		}
	}
	return out, nil
}

func (m memResults) ListByTest(_ context.Context, testID uuid.UUID) ([]model.TestResultRow, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.TestResultRow{}
	for attemptID, r := range m.db.results {
		a := m.db.attempts[attemptID]
		if a.TestID == testID {
			out = append(out, model.TestResultRow{ExamResult: r, StartTime: a.StartTime, EndTime: a.EndTime})
		}
	}
	return out, nil
}
