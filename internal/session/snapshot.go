package session

import (
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// PaletteEntry is one cell of the question palette.
type PaletteEntry struct {
	Index          int       `json:"index"`
	QuestionID     uuid.UUID `json:"question_id"`
	QuestionNumber int       `json:"question_number"`
	Status         Status    `json:"status"`
}

// Summary counts responses for the palette legend and the submit dialog.
type Summary struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Marked     int `json:"marked"`
	Visited    int `json:"visited"`
	NotVisited int `json:"not_visited"`
}

// Snapshot is a point-in-time copy of a store for transport.
type Snapshot struct {
	AttemptID        uuid.UUID                   `json:"attempt_id"`
	TestID           uuid.UUID                   `json:"test_id"`
	State            State                       `json:"state"`
	CurrentIndex     int                         `json:"current_index"`
	Question         *model.QuestionForCandidate `json:"question,omitempty"`
	Response         *model.ExamResponse         `json:"response,omitempty"`
	StagedOption     *string                     `json:"staged_option"`
	RemainingSeconds int                         `json:"remaining_seconds"`
	TimerLevel       string                      `json:"timer_level"`
	ZoomLevel        int                         `json:"zoom_level"`
	IsTimeout        bool                        `json:"is_timeout"`
	Submitting       bool                        `json:"submitting"`
	Palette          []PaletteEntry              `json:"palette"`
	Summary          Summary                     `json:"summary"`
}

// Snapshot copies the runtime state, including the current question
// without its answer key.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		AttemptID:        s.attemptID,
		TestID:           s.testID,
		State:            s.state,
		CurrentIndex:     s.current,
		RemainingSeconds: s.remaining,
		TimerLevel:       TimerLevel(s.remaining),
		ZoomLevel:        s.zoom,
		IsTimeout:        s.isTimeout,
		Submitting:       s.submitting,
		Palette:          make([]PaletteEntry, len(s.questions)),
		Summary:          s.summary(),
	}
	if s.staged != "" {
		staged := s.staged
		snap.StagedOption = &staged
	}
	if s.current < len(s.questions) {
		q := s.questions[s.current].ForCandidate()
		r := s.responses[s.current]
		snap.Question = &q
		snap.Response = &r
	}
	for i, q := range s.questions {
		_, visited := s.visited[q.ID]
		snap.Palette[i] = PaletteEntry{
			Index:          i,
			QuestionID:     q.ID,
			QuestionNumber: q.QuestionNumber,
			Status:         StatusOf(&s.responses[i], visited),
		}
	}
	return snap
}

// Summary returns the response counts.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

func (s *Store) summary() Summary {
	sum := Summary{Total: len(s.questions)}
	for i := range s.responses {
		r := &s.responses[i]
		if r.IsAnswered() {
			sum.Answered++
		}
		if r.IsMarkedForReview {
			sum.Marked++
		}
		if _, ok := s.visited[r.QuestionID]; ok {
			sum.Visited++
		}
	}
	sum.Unanswered = sum.Total - sum.Answered
	sum.NotVisited = sum.Total - sum.Visited
	return sum
}
