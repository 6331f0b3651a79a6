package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/scoring"
	"github.com/stemsi/mocktest-backend/internal/session"
)

// Exam errors.
var (
	ErrAttemptSubmitted   = errors.New("attempt already submitted")
	ErrSubmitInProgress   = errors.New("attempt submit in progress")
	ErrAttemptNotFinished = errors.New("attempt not submitted yet")
	ErrInvalidIndex       = errors.New("question index out of range")
	ErrInvalidOption      = errors.New("option not available for question")
)

// mirrorGrace keeps the response mirror around a little past the deadline.
const mirrorGrace = time.Hour

// PaperSource loads a test with its ordered questions.
type PaperSource interface {
	GetPaper(ctx context.Context, id uuid.UUID) (*model.TestPaper, error)
}

// ExamService drives live attempts: start, intents, resume and submission.
type ExamService struct {
	papers    PaperSource
	attempts  AttemptStore
	responses ResponseStore
	results   ResultStore
	sessions  *session.Manager
	rdb       *redis.Client
	policy    scoring.Policy
	cfg       *config.Config
	log       zerolog.Logger

	resumeMu sync.Mutex
}

// NewExamService creates a new ExamService.
func NewExamService(
	papers PaperSource,
	attempts AttemptStore,
	responses ResponseStore,
	results ResultStore,
	sessions *session.Manager,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		papers:    papers,
		attempts:  attempts,
		responses: responses,
		results:   results,
		sessions:  sessions,
		rdb:       rdb,
		policy:    cfg.ScoringPolicy(),
		cfg:       cfg,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// Start creates an attempt, seeds one empty response per question and opens
// its live session.
func (s *ExamService) Start(ctx context.Context, testID uuid.UUID) (*model.ExamAttempt, session.Snapshot, error) {
	paper, err := s.papers.GetPaper(ctx, testID)
	if err != nil {
		return nil, session.Snapshot{}, err
	}
	if len(paper.Questions) == 0 {
		return nil, session.Snapshot{}, ErrNoQuestions
	}

	attempt := &model.ExamAttempt{
		TestID:                   testID,
		DurationAllocatedMinutes: paper.Test.DurationMinutes,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, session.Snapshot{}, fmt.Errorf("create attempt: %w", err)
	}

	store := session.NewStore()
	store.Initialize(attempt.ID, testID, paper.Questions, attempt.DurationAllocatedMinutes)
	if err := s.responses.CreateBatch(ctx, store.Responses()); err != nil {
		return nil, session.Snapshot{}, fmt.Errorf("seed responses: %w", err)
	}

	if _, err := s.sessions.Open(paper.Test, store, s.onExpire); err != nil {
		return nil, session.Snapshot{}, fmt.Errorf("open session: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("test_id", testID.String()).
		Int("questions", len(paper.Questions)).
		Msg("Attempt started")
	return attempt, store.Snapshot(), nil
}

// State returns the current snapshot of an attempt.
func (s *ExamService) State(ctx context.Context, attemptID uuid.UUID) (session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Store.Snapshot(), nil
}

// Navigate moves to a question. It discards any uncommitted stage.
func (s *ExamService) Navigate(ctx context.Context, attemptID uuid.UUID, index int) (session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if !sess.Store.Navigate(index) {
		return session.Snapshot{}, ErrInvalidIndex
	}
	return s.publishState(sess), nil
}

// Stage holds an option for the current question without committing it.
// Option keys are case-insensitive.
func (s *ExamService) Stage(ctx context.Context, attemptID uuid.UUID, option string) (session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if !sess.Store.Stage(strings.ToUpper(strings.TrimSpace(option))) {
		if err := refusal(sess.Store); err != nil {
			return session.Snapshot{}, err
		}
		return session.Snapshot{}, ErrInvalidOption
	}
	return s.publishState(sess), nil
}

// Commit saves the staged option and advances.
func (s *ExamService) Commit(ctx context.Context, attemptID uuid.UUID) (session.Snapshot, error) {
	return s.mutate(ctx, attemptID, (*session.Store).CommitAndAdvance)
}

// Mark commits with the review flag, or toggles it, and advances.
func (s *ExamService) Mark(ctx context.Context, attemptID uuid.UUID) (session.Snapshot, error) {
	return s.mutate(ctx, attemptID, (*session.Store).MarkForReview)
}

// Clear removes the current question's answer.
func (s *ExamService) Clear(ctx context.Context, attemptID uuid.UUID) (session.Snapshot, error) {
	return s.mutate(ctx, attemptID, (*session.Store).ClearSelection)
}

// Zoom sets the question panel zoom level.
func (s *ExamService) Zoom(ctx context.Context, attemptID uuid.UUID, level int) (session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return session.Snapshot{}, err
	}
	sess.Store.SetZoom(level)
	return s.publishState(sess), nil
}

// Subscribe attaches a listener to an attempt's event stream and returns the
// current snapshot alongside it.
func (s *ExamService) Subscribe(ctx context.Context, attemptID uuid.UUID) (<-chan session.Event, func(), session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return nil, nil, session.Snapshot{}, err
	}
	events, cancel := sess.Subscribe()
	return events, cancel, sess.Store.Snapshot(), nil
}

// Submit scores and persists an attempt. Repeated calls return the stored
// result.
func (s *ExamService) Submit(ctx context.Context, attemptID uuid.UUID) (*model.ExamResult, error) {
	sess, err := s.session(ctx, attemptID)
	if errors.Is(err, ErrAttemptSubmitted) {
		return s.results.GetByAttempt(ctx, attemptID)
	}
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, sess, attemptID, false)
}

// Release tears down the live session of an attempt without submitting it.
// The attempt can be resumed later from its saved responses.
func (s *ExamService) Release(attemptID uuid.UUID) {
	s.sessions.Release(attemptID)
}

// Close stops every live session.
func (s *ExamService) Close() {
	s.sessions.Close()
}

// submit freezes the store, then scores, upserts the responses and closes
// the attempt together with its result. The store only becomes terminal once
// all of them succeeded; a failure reopens it for a retry.
func (s *ExamService) submit(ctx context.Context, sess *session.Session, attemptID uuid.UUID, isTimeout bool) (*model.ExamResult, error) {
	sess.SubmitMu.Lock()
	defer sess.SubmitMu.Unlock()

	store := sess.Store
	responses, ok := store.BeginSubmit()
	if !ok {
		return s.results.GetByAttempt(ctx, attemptID)
	}
	s.publishState(sess)

	result, err := s.persistSubmission(ctx, sess, responses, isTimeout)
	if err != nil {
		store.AbortSubmit()
		s.publishState(sess)
		return nil, err
	}

	store.Submit(isTimeout)
	sess.Publish(session.Event{Type: session.EventSubmitted, Payload: result})
	if err := dropCached(ctx, s.rdb, config.CacheKey.AttemptResponsesKey(attemptID)); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to drop response mirror")
	}
	s.sessions.Release(attemptID)

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Bool("is_timeout", isTimeout).
		Float64("total_score", result.TotalScore).
		Float64("max_score", result.MaxScore).
		Msg("Attempt submitted")
	return result, nil
}

// persistSubmission scores responses and writes them. Scoring and the
// upsert use the same slice.
func (s *ExamService) persistSubmission(ctx context.Context, sess *session.Session, responses []model.ExamResponse, isTimeout bool) (*model.ExamResult, error) {
	store := sess.Store
	attemptID := store.AttemptID()
	spent := store.DurationSpentSeconds()
	breakdown := s.policy.Score(store.Questions(), session.ByQuestion(responses))

	if err := s.responses.UpsertBatch(ctx, responses); err != nil {
		return nil, fmt.Errorf("upsert responses: %w", err)
	}

	result := &model.ExamResult{
		AttemptID:       attemptID,
		CorrectCount:    breakdown.Correct,
		IncorrectCount:  breakdown.Incorrect,
		UnansweredCount: breakdown.Unanswered,
		TotalScore:      breakdown.TotalScore,
		MaxScore:        breakdown.MaxScore,
	}
	if others, err := s.results.ListScoresByTest(ctx, sess.Test.ID, attemptID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Percentile unavailable")
	} else if p, ok := scoring.Percentile(breakdown.TotalScore, others); ok {
		result.Percentile = &p
	}
	if err := s.attempts.MarkSubmitted(ctx, attemptID, time.Now(), spent, isTimeout, result); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	return result, nil
}

func (s *ExamService) onExpire(attemptID uuid.UUID) {
	sess, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
	defer cancel()

	if _, err := s.submit(ctx, sess, attemptID, true); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Timeout submit failed")
		sess.Publish(session.Event{Type: session.EventError, Payload: "SUBMIT_FAILED"})
	}
}

func (s *ExamService) mutate(ctx context.Context, attemptID uuid.UUID, op func(*session.Store) (model.ExamResponse, bool)) (session.Snapshot, error) {
	sess, err := s.session(ctx, attemptID)
	if err != nil {
		return session.Snapshot{}, err
	}
	resp, ok := op(sess.Store)
	if !ok {
		if err := refusal(sess.Store); err != nil {
			return session.Snapshot{}, err
		}
		return session.Snapshot{}, ErrAttemptSubmitted
	}
	s.enqueueAutosave(ctx, resp)
	return s.publishState(sess), nil
}

// refusal explains why a store turned down an answer mutation. It returns
// nil when the store still accepts answers.
func refusal(store *session.Store) error {
	switch {
	case store.Submitting():
		return ErrSubmitInProgress
	case store.State() != session.StateActive:
		return ErrAttemptSubmitted
	default:
		return nil
	}
}

func (s *ExamService) publishState(sess *session.Session) session.Snapshot {
	snap := sess.Store.Snapshot()
	sess.Publish(session.Event{Type: session.EventState, Payload: snap})
	return snap
}

// enqueueAutosave mirrors a committed response into Redis and queues it for
// the autosave worker. Failures only cost durability until submit.
func (s *ExamService) enqueueAutosave(ctx context.Context, resp model.ExamResponse) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal response failed")
		return
	}

	key := config.CacheKey.AttemptResponsesKey(resp.AttemptID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, resp.QuestionID.String(), data)
	pipe.Expire(ctx, key, s.cfg.AttemptTokenGrace+mirrorGrace)
	pipe.RPush(ctx, config.WorkerKey.PersistResponsesQueue, data)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", resp.AttemptID.String()).Msg("Autosave enqueue failed")
	}
}

// session returns the live session of an attempt, rebuilding it from saved
// responses when the process lost it.
func (s *ExamService) session(ctx context.Context, attemptID uuid.UUID) (*session.Session, error) {
	if sess, ok := s.sessions.Get(attemptID); ok {
		return sess, nil
	}

	s.resumeMu.Lock()
	defer s.resumeMu.Unlock()

	if sess, ok := s.sessions.Get(attemptID); ok {
		return sess, nil
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted {
		return nil, ErrAttemptSubmitted
	}

	paper, err := s.papers.GetPaper(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	saved, err := s.savedResponses(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	elapsed := int(time.Since(attempt.StartTime).Seconds())
	remaining := attempt.DurationAllocatedMinutes*60 - elapsed

	store := session.NewStore()
	store.Initialize(attempt.ID, attempt.TestID, paper.Questions, attempt.DurationAllocatedMinutes)
	store.Restore(saved, remaining)

	sess, err := s.sessions.Open(paper.Test, store, s.onExpire)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("remaining_seconds", store.Remaining()).
		Msg("Attempt resumed")

	if remaining <= 0 {
		if _, err := s.submit(ctx, sess, attemptID, true); err != nil {
			return nil, fmt.Errorf("submit expired attempt: %w", err)
		}
		return nil, ErrAttemptSubmitted
	}
	return sess, nil
}

// savedResponses merges persisted responses with the newer Redis mirror.
func (s *ExamService) savedResponses(ctx context.Context, attemptID uuid.UUID) ([]model.ExamResponse, error) {
	saved, err := s.responses.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if s.rdb == nil {
		return saved, nil
	}

	mirror, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptResponsesKey(attemptID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Response mirror unavailable")
		return saved, nil
	}
	for _, raw := range mirror {
		var r model.ExamResponse
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		saved = append(saved, r)
	}
	return saved, nil
}
