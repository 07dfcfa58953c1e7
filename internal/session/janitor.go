package session

import (
	"context"
	"time"

	"astra/internal/logging"
)

const defaultJanitorInterval = time.Minute

// Janitor periodically sweeps expired sessions out of a store. Input
// handling already treats expired sessions as gone, so the janitor exists to
// reclaim the ones whose users never sent another message.
type Janitor struct {
	store     Pruner
	interval  time.Duration
	now       func() time.Time
	logger    logging.Logger
	onExpired func(Session)
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithJanitorInterval sets the sweep interval.
func WithJanitorInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithJanitorClock sets the clock used to decide expiry.
func WithJanitorClock(now func() time.Time) JanitorOption {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// WithJanitorLogger sets the janitor's logger.
func WithJanitorLogger(logger logging.Logger) JanitorOption {
	return func(j *Janitor) {
		j.logger = logging.OrNop(logger)
	}
}

// WithOnExpired registers a callback invoked once per pruned session,
// outside any store lock.
func WithOnExpired(fn func(Session)) JanitorOption {
	return func(j *Janitor) {
		j.onExpired = fn
	}
}

// NewJanitor creates a janitor over the given store.
func NewJanitor(store Pruner, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		store:    store,
		interval: defaultJanitorInterval,
		now:      time.Now,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run sweeps once immediately and then on every interval tick until ctx is
// cancelled. It always returns nil; cancellation is the normal way to stop.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	removed, err := j.store.PruneExpired(sweepCtx, j.now())
	if err != nil {
		j.logger.Warn("Failed to prune expired sessions: %v", err)
		return
	}
	if len(removed) == 0 {
		j.logger.Debug("No expired sessions to prune")
		return
	}
	j.logger.Info("Pruned %d expired session(s)", len(removed))
	if j.onExpired != nil {
		for _, sess := range removed {
			j.onExpired(sess)
		}
	}
}
