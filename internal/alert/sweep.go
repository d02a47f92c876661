package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bholliman55/securewatch-n8n/internal/event"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
)

// DefaultInterval between sweeps.
const DefaultInterval = 15 * time.Minute

// Sweeper periodically polls the error window and dispatches one summary
// per errored event. Each invocation is stateless and idempotent from the
// sweeper's side: no dedup is kept across ticks, so an error that stays
// inside the trailing window is reported again on the next tick. Channels
// are expected to tolerate duplicates. Run a single active sweeper per
// deployment; a duplicate is noisy, not catastrophic.
type Sweeper struct {
	store    ledger.Reader
	interval time.Duration
	window   time.Duration

	mu         sync.RWMutex
	dispatcher *Dispatcher
}

// NewSweeper creates a sweeper. Zero interval/window fall back to defaults.
func NewSweeper(store ledger.Reader, dispatcher *Dispatcher, interval, window time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		window:     ledger.ClampWindow(window),
	}
}

// Swap replaces the dispatcher, used by config hot reload.
func (s *Sweeper) Swap(d *Dispatcher) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("[sweep] failed: %v", err)
			} else if n > 0 {
				log.Printf("[sweep] dispatched %d error summary(ies)", n)
			}
		}
	}
}

// SweepOnce runs a single sweep and returns the number of summaries
// dispatched. A read failure aborts the sweep; a channel failure does not.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	s.mu.RLock()
	dispatcher := s.dispatcher
	s.mu.RUnlock()

	if dispatcher == nil {
		return 0, nil
	}

	events, err := s.store.RecentErrors(ctx, s.window)
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		dispatcher.Dispatch(Summarize(ev))
	}
	return len(events), nil
}

// Summarize builds the channel payload for one errored event.
func Summarize(ev event.Event) ErrorSummary {
	s := ErrorSummary{
		Timestamp: ev.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		TraceID:   ev.TraceID,
		EventID:   ev.ID,
		EventType: ev.EventType,
		EventName: ev.EventName,
		Source:    ev.Source,
		Meta:      ev.Meta,
	}
	if ev.Err != nil {
		s.Message = ev.Err.Message
		s.Code = ev.Err.Code
	}
	return s
}
