// Package web is the websocket chat channel. Every connection gets a fresh
// visitor identity, so web sessions live and die with the socket; nothing a
// visitor does survives a reconnect except what the engine persisted.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"astra/internal/astro"
	"astra/internal/conversation"
	astraerrors "astra/internal/errors"
	"astra/internal/logging"
	"astra/internal/observability"
	"astra/internal/session"
)

const (
	maxMessageSize = 4 << 10
	writeTimeout   = 10 * time.Second
)

// Frame types on the wire. The client sends {"text": ...}; replies carry a
// type so the client can distinguish chat replies from protocol errors.
const (
	frameWelcome = "welcome"
	frameReply   = "reply"
	frameError   = "error"
)

var errMissingEngine = errors.New("web gateway: conversation engine is required")

type inboundFrame struct {
	Text string `json:"text"`
}

type outboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Gateway upgrades HTTP requests to websocket chat sessions and bridges
// them to the conversation engine. It implements http.Handler so the API
// server can mount it as a route.
type Gateway struct {
	engine   *conversation.Engine
	upgrader websocket.Upgrader

	logger    logging.Logger
	metrics   *observability.MetricsCollector
	now       func() time.Time
	visitorID func() string
}

// Option configures optional gateway dependencies.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger logging.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithMetrics enables per-message metrics.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithVisitorIDs overrides the visitor ID generator, letting tests pin the
// identity a connection gets.
func WithVisitorIDs(gen func() string) Option {
	return func(g *Gateway) { g.visitorID = gen }
}

// NewGateway builds the chat gateway. Origin checks are left to the HTTP
// server's CORS layer; the upgrader accepts any origin.
func NewGateway(engine *conversation.Engine, opts ...Option) (*Gateway, error) {
	if engine == nil {
		return nil, errMissingEngine
	}
	g := &Gateway{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now:       time.Now,
		visitorID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger)
	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		g.logger.Warn("Websocket upgrade failed: %v", err)
		return
	}
	userID := "web-" + g.visitorID()
	g.logger.Info("Web visitor %s connected", userID)
	g.serveConn(r.Context(), conn, userID)
	g.logger.Info("Web visitor %s disconnected", userID)
}

// serveConn runs the read-respond-write loop. Reads, engine calls, and
// writes all happen on this one goroutine, so no write lock is needed.
func (g *Gateway) serveConn(ctx context.Context, conn *websocket.Conn, userID string) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	if err := g.writeFrame(conn, frameWelcome, conversation.RenderWelcome("")); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		started := g.now()

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			g.recordMessage(ctx, "rejected", started)
			if err := g.writeFrame(conn, frameError, `messages must be JSON: {"text": "..."}`); err != nil {
				return
			}
			continue
		}

		reply := g.respond(ctx, userID, in.Text)
		if reply == "" {
			g.recordMessage(ctx, "ignored", started)
			continue
		}
		g.recordMessage(ctx, "ok", started)
		if err := g.writeFrame(conn, frameReply, reply); err != nil {
			return
		}
	}
}

func (g *Gateway) writeFrame(conn *websocket.Conn, kind, text string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(outboundFrame{Type: kind, Text: text}); err != nil {
		g.logger.Warn("Websocket write failed: %v", err)
		return err
	}
	return nil
}

// respond resolves the text to an intent or feeds it to an active flow.
// Commands may be typed with a leading slash the way the Telegram bot
// accepts them.
func (g *Gateway) respond(ctx context.Context, userID, raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "/") {
		intent := conversation.ResolveCommand(strings.Fields(text)[0])
		if intent == conversation.IntentNone {
			return "Unknown command. Type help to see what I can do."
		}
		return g.dispatchIntent(ctx, userID, intent)
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
			return g.dispatchIntent(ctx, userID, intent)
		}
		return conversation.RenderMenu()
	}
	return g.renderError(err)
}

func (g *Gateway) dispatchIntent(ctx context.Context, userID string, intent conversation.Intent) string {
	switch intent {
	case conversation.IntentStart:
		return conversation.RenderWelcome("")
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
			g.logger.Warn("Web random fact unavailable: %v", err)
			return "No facts available right now. Try again later!"
		}
		return conversation.RenderFact(fact)
	case conversation.IntentSubscribe, conversation.IntentUnsubscribe:
		// Web identities are connection-scoped; a daily broadcast could
		// never reach them.
		return "Subscriptions live in the Telegram bot, where I can reach you every morning."
	case conversation.IntentStats, conversation.IntentBroadcast:
		// Admin surfaces stay Telegram-only and silent elsewhere.
		return ""
	default:
		return conversation.RenderMenu()
	}
}

func (g *Gateway) renderOutcome(out conversation.Outcome, err error) string {
	if err != nil {
		return g.renderError(err)
	}
	return conversation.Render(out)
}

func (g *Gateway) renderError(err error) string {
	if astraerrors.GetErrorType(err) == astraerrors.ErrorTypeInternal {
		g.logger.Error("Web chat failure: %v", err)
	}
	return conversation.RenderError(err)
}

func (g *Gateway) recordMessage(ctx context.Context, status string, started time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordMessage(ctx, "web", status, g.now().Sub(started))
}
