// Package broadcast fans the daily horoscope out to subscribers and serves
// one-off admin broadcasts. Per-user failures are counted and logged but
// never abort a run.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"astra/internal/astro"
	"astra/internal/conversation"
	astraerrors "astra/internal/errors"
	"astra/internal/logging"
	"astra/internal/observability"
	"astra/internal/storage"
)

const (
	// DefaultMaxUsers caps one run; anything past it is skipped with a
	// warning rather than queued.
	DefaultMaxUsers    = 1000
	DefaultConcurrency = 8
)

// Messenger delivers one message to a chat. The Telegram client satisfies it.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Config tunes broadcast behavior.
type Config struct {
	// DailyHour is the UTC hour for the scheduled run; -1 disables the
	// schedule without disabling one-off broadcasts.
	DailyHour   int
	MaxUsers    int
	Concurrency int
}

// Broadcaster owns the subscriber fan-out.
type Broadcaster struct {
	cfg       Config
	users     storage.UserStore
	subs      storage.SubscriptionStore
	facts     storage.FactStore
	messenger Messenger
	logger    logging.Logger
	metrics   *observability.MetricsCollector
	retry     astraerrors.RetryConfig
	now       func() time.Time
}

// Option customises broadcaster construction.
type Option func(*Broadcaster)

// WithLogger sets the broadcaster logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Broadcaster) { b.logger = logging.OrNop(logger) }
}

// WithMetrics enables send metrics.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// WithClock replaces the time source used for readings and scheduling.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		if now != nil {
			b.now = now
		}
	}
}

// WithFactStore wires the daily-insight source.
func WithFactStore(facts storage.FactStore) Option {
	return func(b *Broadcaster) { b.facts = facts }
}

// WithRetryConfig tunes per-send retries.
func WithRetryConfig(cfg astraerrors.RetryConfig) Option {
	return func(b *Broadcaster) { b.retry = cfg }
}

// New builds a broadcaster over the given stores and messenger.
func New(cfg Config, users storage.UserStore, subs storage.SubscriptionStore, messenger Messenger, opts ...Option) (*Broadcaster, error) {
	if users == nil || subs == nil {
		return nil, fmt.Errorf("broadcaster requires user and subscription stores")
	}
	if messenger == nil {
		return nil, fmt.Errorf("broadcaster requires a messenger")
	}
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = DefaultMaxUsers
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	b := &Broadcaster{
		cfg:       cfg,
		users:     users,
		subs:      subs,
		messenger: messenger,
		logger:    logging.Nop(),
		retry:     astraerrors.DefaultRetryConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Broadcast sends the same text to every subscriber.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (int, int, error) {
	targets, err := b.targets(ctx)
	if err != nil {
		return 0, 0, err
	}
	sent, failed := b.fanOut(ctx, targets, func(context.Context, storage.UserRecord) string {
		return text
	})
	b.logger.Info("Broadcast done: %d sent, %d failed of %d targets", sent, failed, len(targets))
	return sent, failed, nil
}

// SendDaily sends each subscriber their personalized reading for today,
// with the day's insight appended when the fact store has one.
func (b *Broadcaster) SendDaily(ctx context.Context) (int, int, error) {
	targets, err := b.targets(ctx)
	if err != nil {
		return 0, 0, err
	}

	today := b.now()
	insight := b.dailyInsight(ctx, today.Day())
	sent, failed := b.fanOut(ctx, targets, func(_ context.Context, rec storage.UserRecord) string {
		return conversation.RenderReading(conversation.DailyReading{
			Record:  rec,
			Reading: astro.ReadingFor(rec.BirthDate, today),
			Insight: insight,
		})
	})
	b.logger.Info("Daily broadcast done: %d sent, %d failed of %d subscribers", sent, failed, len(targets))
	return sent, failed, nil
}

// RunDaily blocks, firing SendDaily at the configured UTC hour until the
// context is cancelled. A negative hour disables the schedule.
func (b *Broadcaster) RunDaily(ctx context.Context) error {
	if b.cfg.DailyHour < 0 {
		b.logger.Info("Daily broadcast schedule disabled")
		return nil
	}
	for {
		next := nextRun(b.now(), b.cfg.DailyHour)
		b.logger.Info("Next daily broadcast at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(b.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, _, err := b.SendDaily(ctx); err != nil {
			b.logger.Error("Daily broadcast run failed: %v", err)
		}
	}
}

// nextRun returns the next occurrence of the given UTC hour strictly after
// now.
func nextRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// targets lists subscriber IDs for one run, enforcing the hard cap.
func (b *Broadcaster) targets(ctx context.Context) ([]string, error) {
	ids, err := b.subs.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	if len(ids) > b.cfg.MaxUsers {
		b.logger.Warn("Broadcast capped at %d of %d subscribers", b.cfg.MaxUsers, len(ids))
		ids = ids[:b.cfg.MaxUsers]
	}
	return ids, nil
}

// fanOut delivers compose(rec) to every target with bounded concurrency.
func (b *Broadcaster) fanOut(ctx context.Context, targets []string, compose func(context.Context, storage.UserRecord) string) (int, int) {
	var sent, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for _, userID := range targets {
		if ctx.Err() != nil {
			break
		}
		userID := userID // capture loop variable

		g.Go(func() error {
			if err := b.sendOne(ctx, userID, compose); err != nil {
				failed.Add(1)
				b.logger.Warn("Broadcast to user %s failed: %v", userID, err)
				b.recordSend(ctx, "failed")
				return nil // one failure never aborts the run
			}
			sent.Add(1)
			b.recordSend(ctx, "sent")
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load()), int(failed.Load())
}

func (b *Broadcaster) sendOne(ctx context.Context, userID string, compose func(context.Context, storage.UserRecord) string) error {
	rec, err := b.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not a chat id: %w", userID, err)
	}
	text := compose(ctx, rec)
	return astraerrors.Retry(ctx, b.retry, b.logger, func(ctx context.Context) error {
		return b.messenger.SendText(ctx, chatID, text)
	})
}

// dailyInsight returns the fact-of-day text, or "" when none is stored.
func (b *Broadcaster) dailyInsight(ctx context.Context, day int) string {
	if b.facts == nil {
		return ""
	}
	fact, err := b.facts.FactForDay(ctx, day)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("Daily insight lookup failed: %v", err)
		}
		return ""
	}
	return fact.Text
}

func (b *Broadcaster) recordSend(ctx context.Context, status string) {
	if b.metrics != nil {
		b.metrics.RecordBroadcastSend(ctx, status)
	}
}
