package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// ErrSessionExists is returned when an attempt already has a live session.
var ErrSessionExists = errors.New("session already open for attempt")

// EventType names a server-pushed session event.
type EventType string

const (
	EventState     EventType = "state"
	EventTick      EventType = "tick"
	EventExpired   EventType = "expired"
	EventSubmitted EventType = "submitted"
	EventError     EventType = "error"
)

// Event is pushed to every subscriber of a session.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// TickPayload accompanies EventTick.
type TickPayload struct {
	RemainingSeconds int    `json:"remaining_seconds"`
	TimerLevel       string `json:"timer_level"`
}

const subscriberBuffer = 16

// Session is a live attempt: its store, timer and event subscribers.
type Session struct {
	Store *Store
	Test  model.Test

	// SubmitMu serializes manual and timeout submissions.
	SubmitMu sync.Mutex

	timer *Timer

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// Subscribe registers a listener. The returned cancel func unregisters it;
// the channel is also closed when the session is released.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

// Publish delivers e to every subscriber. Slow subscribers miss events.
func (s *Session) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Manager owns every live session and its timer.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	interval time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a Manager whose timers tick every interval.
func NewManager(interval time.Duration, log zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		interval: interval,
		log:      log.With().Str("component", "session_manager").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open registers an initialized store and starts its timer. onExpire is
// invoked once, on its own goroutine, when the countdown reaches zero.
func (m *Manager) Open(test model.Test, store *Store, onExpire func(attemptID uuid.UUID)) (*Session, error) {
	attemptID := store.AttemptID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[attemptID]; ok {
		return nil, ErrSessionExists
	}

	sess := &Session{
		Store:       store,
		Test:        test,
		subscribers: make(map[chan Event]struct{}),
	}
	sess.timer = NewTimer(store, m.interval,
		func(res TickResult) {
			sess.Publish(Event{Type: EventTick, Payload: TickPayload{
				RemainingSeconds: res.Remaining,
				TimerLevel:       TimerLevel(res.Remaining),
			}})
		},
		func() {
			m.log.Info().Str("attempt_id", attemptID.String()).Msg("Attempt time expired")
			sess.Publish(Event{Type: EventExpired})
			if onExpire != nil {
				onExpire(attemptID)
			}
		},
	)
	m.sessions[attemptID] = sess
	sess.timer.Start(m.ctx)

	m.log.Debug().Str("attempt_id", attemptID.String()).Msg("Session opened")
	return sess, nil
}

// Get returns the live session of attemptID.
func (m *Manager) Get(attemptID uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[attemptID]
	return sess, ok
}

// Release stops the session's timer, resets its store and disconnects its
// subscribers. Releasing an unknown attempt is a no-op.
func (m *Manager) Release(attemptID uuid.UUID) {
	m.mu.Lock()
	sess, ok := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.teardown(sess)
	m.log.Debug().Str("attempt_id", attemptID.String()).Msg("Session released")
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close releases every session. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	m.cancel()
	for _, sess := range sessions {
		m.teardown(sess)
	}
	m.log.Info().Int("sessions", len(sessions)).Msg("Session manager closed")
}

func (m *Manager) teardown(sess *Session) {
	sess.timer.Stop()
	sess.Store.Reset()
	sess.closeSubscribers()
}
