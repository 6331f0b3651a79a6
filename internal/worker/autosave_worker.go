package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// ResponseWriter persists a single committed response.
type ResponseWriter interface {
	UpdateIfActive(ctx context.Context, r model.ExamResponse) (bool, error)
}

// AutosaveWorker consumes persist_responses_queue and writes committed
// responses to PostgreSQL while an attempt is still running.
type AutosaveWorker struct {
	writer     ResponseWriter
	rdb        *redis.Client
	queue      string
	pollWait   time.Duration
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(writer ResponseWriter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		writer:     writer,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistResponsesQueue,
		pollWait:   time.Second,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the poll wait elapses.
	result, err := w.rdb.BLPop(ctx, w.pollWait, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, w.queue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// persist writes one queued payload. Malformed payloads are logged and
// dropped.
func (w *AutosaveWorker) persist(ctx context.Context, raw string) error {
	var r model.ExamResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return nil
	}

	written, err := w.writer.UpdateIfActive(ctx, r)
	if err != nil {
		return err
	}
	if !written {
		w.log.Debug().
			Str("attempt_id", r.AttemptID.String()).
			Str("question_id", r.QuestionID.String()).
			Msg("Skipped response for closed attempt")
	}
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		if err := w.persist(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
