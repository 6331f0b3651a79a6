package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the countdown period.
const DefaultTickInterval = time.Second

// Timer drives a Store's countdown. It stops by itself once the store leaves
// the active state.
type Timer struct {
	store    *Store
	interval time.Duration
	onTick   func(TickResult)
	onExpire func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTimer creates a stopped timer. onTick runs on the timer goroutine after
// every applied tick and must not block; onExpire runs on its own goroutine.
// Either callback may be nil.
func NewTimer(store *Store, interval time.Duration, onTick func(TickResult), onExpire func()) *Timer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timer{
		store:    store,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start launches the tick loop. Calling Start on a running timer is a no-op.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once and on a timer that was never started.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Timer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := t.store.Tick()
			if !res.Applied {
				if t.store.State() != StateActive {
					return
				}
				continue
			}
			if t.onTick != nil {
				t.onTick(res)
			}
			if res.Expired && t.onExpire != nil {
				go t.onExpire()
			}
		}
	}
}
