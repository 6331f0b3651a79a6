// Package session holds the live state of exam attempts: the per-attempt
// Store state machine, its countdown Timer, and the Manager that owns both.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// State is the lifecycle state of an attempt.
type State string

const (
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateSubmitted State = "submitted"
)

// Zoom bounds for the question panel.
const (
	MinZoom     = 80
	MaxZoom     = 150
	DefaultZoom = 100
)

// Store is the in-memory state machine of a single attempt.
// All methods are safe for concurrent use.
type Store struct {
	mu sync.Mutex

	state     State
	attemptID uuid.UUID
	testID    uuid.UUID
	questions []model.Question
	responses []model.ExamResponse
	visited   map[uuid.UUID]struct{}

	current   int
	staged    string
	duration  int
	remaining int
	zoom      int
	isTimeout bool
	expired   bool

	// submitting is set while a submit is being persisted. Answer
	// mutations are refused until it either completes or is aborted.
	submitting bool
}

// NewStore returns an empty store in the loading state.
func NewStore() *Store {
	return &Store{
		state:   StateLoading,
		visited: make(map[uuid.UUID]struct{}),
		zoom:    DefaultZoom,
	}
}

// TickResult reports the effect of a single timer tick.
type TickResult struct {
	Applied   bool
	Remaining int
	Expired   bool
}

// Initialize resets all runtime state and seeds one empty response per
// question. questions must be the full ordered set for the test.
func (s *Store) Initialize(attemptID, testID uuid.UUID, questions []model.Question, durationMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.attemptID = attemptID
	s.testID = testID
	s.questions = append([]model.Question(nil), questions...)
	s.responses = make([]model.ExamResponse, len(questions))
	for i, q := range questions {
		s.responses[i] = model.ExamResponse{
			ID:         uuid.New(),
			AttemptID:  attemptID,
			QuestionID: q.ID,
		}
	}
	s.duration = durationMinutes
	s.remaining = durationMinutes * 60
	s.state = StateActive
}

// Restore overlays previously saved responses and the remaining time onto an
// initialized store. Responses for unknown questions, and responses older
// than one already restored for the same question, are ignored.
func (s *Store) Restore(saved []model.ExamResponse, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}
	byQuestion := make(map[uuid.UUID]int, len(s.questions))
	for i, q := range s.questions {
		byQuestion[q.ID] = i
	}
	for _, r := range saved {
		i, ok := byQuestion[r.QuestionID]
		if !ok || r.Revision < s.responses[i].Revision {
			continue
		}
		r.AttemptID = s.attemptID
		if r.IsAnswered() {
			s.visited[r.QuestionID] = struct{}{}
		}
		s.responses[i] = r
	}
	s.remaining = max(0, min(remaining, s.duration*60))
	s.staged = s.committedAt(s.current)
}

// Navigate moves to index and marks it visited. Any stage on the question
// being left is discarded. Navigation stays available after submission.
func (s *Store) Navigate(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLoading || index < 0 || index >= len(s.questions) {
		return false
	}
	s.moveTo(index)
	return true
}

// Stage holds key as the scratch selection of the current question.
// It never touches the committed response.
func (s *Store) Stage(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepting() || len(s.questions) == 0 {
		return false
	}
	if !model.IsValidAnswerKey(key) || !s.questions[s.current].HasOption(key) {
		return false
	}
	s.staged = key
	return true
}

// CommitAndAdvance writes the staged selection into the current response,
// clears its review mark and moves to the next question unless on the last.
// It returns the response of the question that was current.
func (s *Store) CommitAndAdvance() (model.ExamResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepting() || len(s.questions) == 0 {
		return model.ExamResponse{}, false
	}
	r := &s.responses[s.current]
	if s.staged != "" {
		answer := s.staged
		r.SelectedAnswer = &answer
		r.IsMarkedForReview = false
		r.Revision++
	}
	out := *r
	s.advance()
	return out, true
}

// MarkForReview commits a pending stage together with the review mark, or
// toggles the mark when nothing is staged. It always advances unless on the
// last question.
func (s *Store) MarkForReview() (model.ExamResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepting() || len(s.questions) == 0 {
		return model.ExamResponse{}, false
	}
	r := &s.responses[s.current]
	if s.staged != "" {
		answer := s.staged
		r.SelectedAnswer = &answer
		r.IsMarkedForReview = true
	} else {
		r.IsMarkedForReview = !r.IsMarkedForReview
	}
	r.Revision++
	out := *r
	s.advance()
	return out, true
}

// ClearSelection drops both the stage and the committed answer of the
// current question. Mark and position are kept.
func (s *Store) ClearSelection() (model.ExamResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepting() || len(s.questions) == 0 {
		return model.ExamResponse{}, false
	}
	s.staged = ""
	r := &s.responses[s.current]
	r.SelectedAnswer = nil
	r.Revision++
	return *r, true
}

// Status returns the palette status of questionID.
func (s *Store) Status(questionID uuid.UUID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, visited := s.visited[questionID]
	return StatusOf(s.responseFor(questionID), visited)
}

// BeginSubmit freezes answer mutations and returns the responses to score
// and persist. It fails when the store is not active or a submit is already
// running.
func (s *Store) BeginSubmit() ([]model.ExamResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepting() {
		return nil, false
	}
	s.submitting = true
	return append([]model.ExamResponse(nil), s.responses...), true
}

// AbortSubmit reopens the store for answers after a failed submit.
func (s *Store) AbortSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}

// Submitting reports whether a submit is in flight.
func (s *Store) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Submit moves the store to its terminal state. Only the first call has an
// effect.
func (s *Store) Submit(isTimeout bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	s.state = StateSubmitted
	s.submitting = false
	s.isTimeout = isTimeout
	s.staged = ""
	return true
}

// SetZoom clamps level to [MinZoom, MaxZoom] and returns the applied value.
func (s *Store) SetZoom(level int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.zoom = max(MinZoom, min(MaxZoom, level))
	return s.zoom
}

// Tick decrements the remaining time by one second and charges it to the
// current question. The tick that reaches zero reports Expired once.
func (s *Store) Tick() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.remaining <= 0 {
		return TickResult{Remaining: s.remaining}
	}
	s.remaining--
	if len(s.responses) > 0 {
		s.responses[s.current].TimeSpentSeconds++
	}
	res := TickResult{Applied: true, Remaining: s.remaining}
	if s.remaining == 0 && !s.expired {
		s.expired = true
		res.Expired = true
	}
	return res
}

// Reset returns the store to the loading state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) AttemptID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Store) IsTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTimeout
}

// DurationSpentSeconds is the allocated time minus what remains.
func (s *Store) DurationSpentSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration*60 - s.remaining
}

// Questions returns the loaded questions in order.
func (s *Store) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Question(nil), s.questions...)
}

// Responses returns a copy of the committed responses in question order.
func (s *Store) Responses() []model.ExamResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ExamResponse(nil), s.responses...)
}

// ResponseMap returns the committed responses keyed by question id.
func (s *Store) ResponseMap() map[uuid.UUID]model.ExamResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ByQuestion(s.responses)
}

// ByQuestion keys responses by question id.
func ByQuestion(responses []model.ExamResponse) map[uuid.UUID]model.ExamResponse {
	out := make(map[uuid.UUID]model.ExamResponse, len(responses))
	for _, r := range responses {
		out[r.QuestionID] = r
	}
	return out
}

func (s *Store) reset() {
	s.state = StateLoading
	s.attemptID = uuid.Nil
	s.testID = uuid.Nil
	s.questions = nil
	s.responses = nil
	s.visited = make(map[uuid.UUID]struct{})
	s.current = 0
	s.staged = ""
	s.duration = 0
	s.remaining = 0
	s.zoom = DefaultZoom
	s.isTimeout = false
	s.expired = false
	s.submitting = false
}

func (s *Store) accepting() bool {
	return s.state == StateActive && !s.submitting
}

// moveTo re-seeds the stage from the committed answer of the target.
func (s *Store) moveTo(index int) {
	if index != s.current {
		s.current = index
		if s.state == StateActive {
			s.staged = s.committedAt(index)
		}
	}
	s.visited[s.questions[index].ID] = struct{}{}
}

func (s *Store) advance() {
	if s.current < len(s.questions)-1 {
		s.moveTo(s.current + 1)
	}
}

func (s *Store) committedAt(index int) string {
	if index < 0 || index >= len(s.responses) {
		return ""
	}
	if r := s.responses[index]; r.IsAnswered() {
		return *r.SelectedAnswer
	}
	return ""
}

func (s *Store) responseFor(questionID uuid.UUID) *model.ExamResponse {
	for i := range s.responses {
		if s.responses[i].QuestionID == questionID {
			return &s.responses[i]
		}
	}
	return nil
}
