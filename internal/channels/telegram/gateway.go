// Package telegram bridges Telegram bot messages into the conversation
// engine. The gateway owns inbound dedup, per-user rate limiting, and intent
// resolution; flow state and readings live below it in the engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"astra/internal/astro"
	"astra/internal/conversation"
	astraerrors "astra/internal/errors"
	"astra/internal/logging"
	"astra/internal/observability"
	"astra/internal/session"
	"astra/internal/storage"
)

const (
	defaultDedupCacheSize = 1024
	dedupTTL              = 10 * time.Minute

	// Idle limiters are pruned once the table grows past this size.
	limiterPruneSize = 4096
	limiterIdleTTL   = 30 * time.Minute
)

// Broadcaster pushes one message to every subscriber. Implemented by the
// broadcast package; injected so the admin /broadcast command can reach it.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (sent, failed int, err error)
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Gateway routes Telegram updates to the conversation engine and sends the
// rendered replies back.
type Gateway struct {
	cfg         Config
	engine      *conversation.Engine
	store       storage.Store
	messenger   Messenger
	source      UpdateSource
	broadcaster Broadcaster
	logger      logging.Logger
	metrics     *observability.MetricsCollector
	retry       astraerrors.RetryConfig
	now         func() time.Time

	dedupMu sync.Mutex
	dedup   *lru.Cache[int, time.Time]

	limitMu  sync.Mutex
	limiters map[int64]*userLimiter
}

// GatewayOption customises gateway construction.
type GatewayOption func(*Gateway)

// WithMessenger sets the outbound messenger. Tests inject a recording one.
func WithMessenger(m Messenger) GatewayOption {
	return func(g *Gateway) { g.messenger = m }
}

// WithUpdateSource sets the inbound update source.
func WithUpdateSource(s UpdateSource) GatewayOption {
	return func(g *Gateway) { g.source = s }
}

// WithBroadcaster wires the admin /broadcast command.
func WithBroadcaster(b Broadcaster) GatewayOption {
	return func(g *Gateway) { g.broadcaster = b }
}

// WithLogger sets the gateway logger.
func WithLogger(logger logging.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logging.OrNop(logger) }
}

// WithMetrics enables message metrics.
func WithMetrics(m *observability.MetricsCollector) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock replaces the time source used for dedup and limiter bookkeeping.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithRetryConfig tunes send retries.
func WithRetryConfig(cfg astraerrors.RetryConfig) GatewayOption {
	return func(g *Gateway) { g.retry = cfg }
}

// NewGateway builds a gateway around the engine and store.
func NewGateway(cfg Config, engine *conversation.Engine, store storage.Store, opts ...GatewayOption) (*Gateway, error) {
	if engine == nil {
		return nil, fmt.Errorf("telegram gateway requires an engine")
	}
	if store == nil {
		return nil, fmt.Errorf("telegram gateway requires a store")
	}
	size := cfg.DedupCacheSize
	if size <= 0 {
		size = defaultDedupCacheSize
	}
	dedup, err := lru.New[int, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("telegram dedup cache init: %w", err)
	}

	g := &Gateway{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		logger:   logging.Nop(),
		retry:    astraerrors.DefaultRetryConfig(),
		now:      time.Now,
		dedup:    dedup,
		limiters: make(map[int64]*userLimiter),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Run consumes updates until the context is cancelled or the source closes.
// Updates are processed in order; per-user serialization follows from that.
func (g *Gateway) Run(ctx context.Context) error {
	if g.source == nil {
		return fmt.Errorf("telegram gateway requires an update source")
	}
	if g.messenger == nil {
		return fmt.Errorf("telegram gateway requires a messenger")
	}
	updates, err := g.source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("telegram updates: %w", err)
	}
	g.logger.Info("Telegram gateway listening")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			g.handleUpdate(ctx, u)
		}
	}
}

func (g *Gateway) handleUpdate(ctx context.Context, u Update) {
	started := g.now()
	if u.ChatID == 0 || u.UserID == 0 {
		return
	}
	if g.isDuplicate(u.ID) {
		g.logger.Debug("Telegram duplicate update %d skipped", u.ID)
		g.recordMessage(ctx, "duplicate", started)
		return
	}
	if !g.allowUser(u.UserID) {
		g.logger.Debug("Telegram user %d throttled", u.UserID)
		g.recordMessage(ctx, "throttled", started)
		return
	}

	reply := g.respond(ctx, u)
	if reply == "" {
		g.recordMessage(ctx, "ignored", started)
		return
	}
	if err := g.send(ctx, u.ChatID, reply); err != nil {
		g.logger.Error("Telegram reply to chat %d failed: %v", u.ChatID, err)
		g.recordMessage(ctx, "error", started)
		return
	}
	g.recordMessage(ctx, "ok", started)
}

// respond produces the reply text for one update. An empty string means no
// reply is sent.
func (g *Gateway) respond(ctx context.Context, u Update) string {
	userID := strconv.FormatInt(u.UserID, 10)

	if u.Command != "" {
		intent := conversation.ResolveCommand(u.Command)
		if intent == conversation.IntentNone {
			return "Unknown command. Use /help to see what I can do."
		}
		return g.dispatchIntent(ctx, u, userID, intent)
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return ""
	}
	if conversation.CancelPhrase(text) {
		return g.renderOutcome(g.engine.Cancel(ctx, userID))
	}

	out, err := g.engine.HandleInput(ctx, userID, text)
	if err == nil {
		return conversation.Render(out)
	}
	if astraerrors.IsSessionNotFound(err) {
		// No flow in progress: read the message as a plain request.
		if intent := conversation.ResolvePhrase(text); intent != conversation.IntentNone {
			return g.dispatchIntent(ctx, u, userID, intent)
		}
		return conversation.RenderMenu()
	}
	return g.renderError(err)
}

func (g *Gateway) dispatchIntent(ctx context.Context, u Update, userID string, intent conversation.Intent) string {
	switch intent {
	case conversation.IntentStart:
		return conversation.RenderWelcome(u.FirstName)
	case conversation.IntentHelp:
		return conversation.RenderHelp()
	case conversation.IntentSetDate:
		return g.renderOutcome(g.engine.StartFlow(ctx, userID, session.FlowSetBirthDate))
	case conversation.IntentCompatibility:
		return g.renderOutcome(g.engine.StartFlow(ctx, userID, session.FlowCheckCompatibility))
	case conversation.IntentCancel:
		return g.renderOutcome(g.engine.Cancel(ctx, userID))
	case conversation.IntentHoroscope:
		reading, err := g.engine.TodayReading(ctx, userID)
		if err != nil {
			return g.renderError(err)
		}
		return conversation.RenderReading(reading)
	case conversation.IntentLifePath:
		rec, lp, err := g.engine.Numerology(ctx, userID)
		if err != nil {
			return g.renderError(err)
		}
		return conversation.RenderNumerology(rec, lp)
	case conversation.IntentLucky:
		rec, lp, err := g.engine.Numerology(ctx, userID)
		if err != nil {
			return g.renderError(err)
		}
		return conversation.RenderLucky(rec.Sign, astro.LuckyNumber(lp.Value, g.now()))
	case conversation.IntentFact:
		fact, err := g.engine.RandomInsight(ctx)
		if err != nil {
			g.logger.Warn("Telegram random fact unavailable: %v", err)
			return "No facts available right now. Try again later!"
		}
		return conversation.RenderFact(fact)
	case conversation.IntentSubscribe:
		return g.subscribe(ctx, userID)
	case conversation.IntentUnsubscribe:
		return g.unsubscribe(ctx, userID)
	case conversation.IntentStats:
		// Admin commands stay silent for everyone else.
		if !g.cfg.isAdmin(u.UserID) {
			return ""
		}
		stats, err := g.store.Stats(ctx)
		if err != nil {
			return g.renderError(err)
		}
		return conversation.RenderStats(stats)
	case conversation.IntentBroadcast:
		return g.broadcastCommand(ctx, u)
	default:
		return conversation.RenderMenu()
	}
}

func (g *Gateway) subscribe(ctx context.Context, userID string) string {
	if _, err := g.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return conversation.RenderError(astraerrors.NewMissingPrerequisite(userID, "birth date"))
		}
		return g.renderError(err)
	}
	if err := g.store.Subscribe(ctx, userID); err != nil {
		return g.renderError(err)
	}
	return "✅ Subscribed to the daily horoscope!\nYou'll get your reading every morning."
}

func (g *Gateway) unsubscribe(ctx context.Context, userID string) string {
	if err := g.store.Unsubscribe(ctx, userID); err != nil {
		return g.renderError(err)
	}
	return "Unsubscribed. You can /subscribe again any time."
}

func (g *Gateway) broadcastCommand(ctx context.Context, u Update) string {
	if !g.cfg.isAdmin(u.UserID) {
		return ""
	}
	text := strings.TrimSpace(u.Args)
	if text == "" {
		return "Usage: /broadcast <message>"
	}
	if g.broadcaster == nil {
		return "Broadcast is not configured."
	}
	sent, failed, err := g.broadcaster.Broadcast(ctx, text)
	if err != nil {
		return g.renderError(err)
	}
	return fmt.Sprintf("Broadcast finished: %d sent, %d failed.", sent, failed)
}

func (g *Gateway) renderOutcome(out conversation.Outcome, err error) string {
	if err != nil {
		return g.renderError(err)
	}
	return conversation.Render(out)
}

// renderError maps an error to user text. Internal errors are logged in full
// here; the user only ever sees the generic message.
func (g *Gateway) renderError(err error) string {
	if astraerrors.GetErrorType(err) == astraerrors.ErrorTypeInternal {
		g.logger.Error("Telegram handler internal error: %v", err)
	}
	return conversation.RenderError(err)
}

func (g *Gateway) send(ctx context.Context, chatID int64, text string) error {
	return astraerrors.Retry(ctx, g.retry, g.logger, func(ctx context.Context) error {
		return g.messenger.SendText(ctx, chatID, text)
	})
}

// isDuplicate reports whether this update ID was already seen within the
// dedup TTL, recording it either way.
func (g *Gateway) isDuplicate(updateID int) bool {
	g.dedupMu.Lock()
	defer g.dedupMu.Unlock()

	now := g.now()
	if ts, ok := g.dedup.Get(updateID); ok {
		if now.Sub(ts) <= dedupTTL {
			return true
		}
		g.dedup.Remove(updateID)
	}
	g.dedup.Add(updateID, now)
	return false
}

// allowUser enforces the per-user inbound rate limit.
func (g *Gateway) allowUser(userID int64) bool {
	if g.cfg.RateLimitRPS <= 0 {
		return true
	}
	g.limitMu.Lock()
	defer g.limitMu.Unlock()

	now := g.now()
	if len(g.limiters) > limiterPruneSize {
		for id, ul := range g.limiters {
			if now.Sub(ul.lastSeen) > limiterIdleTTL {
				delete(g.limiters, id)
			}
		}
	}

	ul, ok := g.limiters[userID]
	if !ok {
		burst := g.cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		ul = &userLimiter{limiter: rate.NewLimiter(rate.Limit(g.cfg.RateLimitRPS), burst)}
		g.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter.Allow()
}

func (g *Gateway) recordMessage(ctx context.Context, status string, started time.Time) {
	if g.metrics != nil {
		g.metrics.RecordMessage(ctx, "telegram", status, g.now().Sub(started))
	}
}
