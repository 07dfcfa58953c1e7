// Package http serves the read-only reading API and the web chat endpoint.
// Handlers compute everything from query parameters; nothing here touches
// conversation state except the websocket chat handler mounted at /v1/chat.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"astra/internal/astro"
	"astra/internal/logging"
	"astra/internal/observability"
	"astra/internal/storage"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Config holds the server-level knobs. An empty AllowedOrigins list allows
// any origin, which is the development default.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      RateLimitConfig
}

// Server is the gin front for the reading API. It owns no domain state: the
// fact store and the chat handler are injected, everything else is computed
// per request.
type Server struct {
	cfg    Config
	router *gin.Engine
	srv    *http.Server

	facts     storage.FactStore
	validator *astro.Validator
	chat      http.Handler

	logger    logging.Logger
	metrics   *observability.MetricsCollector
	now       func() time.Time
	startedAt time.Time
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics enables request metrics.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock overrides the time source used for horoscope dates and request
// latency.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithValidator overrides the date validator, letting tests pin the year
// bounds to a fixed clock.
func WithValidator(v *astro.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithChatHandler mounts the websocket chat channel at /v1/chat. Without it
// the route answers 503.
func WithChatHandler(h http.Handler) Option {
	return func(s *Server) { s.chat = h }
}

// New builds the server with all routes registered. facts may be nil, in
// which case /v1/facts/random reports that no facts are available.
func New(cfg Config, facts storage.FactStore, opts ...Option) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("http server: port %d out of range", cfg.Port)
	}

	s := &Server{
		cfg:   cfg,
		facts: facts,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	if s.validator == nil {
		s.validator = astro.NewValidator(astro.WithClock(s.now))
	}
	s.startedAt = s.now()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLog())
	router.Use(cors.New(s.corsConfig()))
	s.router = router
	s.routes()

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	return s, nil
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	cfg.AllowMethods = []string{"GET", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type"}
	cfg.AllowWebSockets = true
	return cfg
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.Use(RateLimitMiddleware(s.cfg.RateLimit, s.logger))
	v1.GET("/zodiac", s.handleZodiac)
	v1.GET("/lifepath", s.handleLifePath)
	v1.GET("/compatibility", s.handleCompatibility)
	v1.GET("/horoscope", s.handleHoroscope)
	v1.GET("/facts/random", s.handleRandomFact)
	v1.GET("/chat", s.handleChat)
}

// Handler exposes the router for tests and for embedding into another mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// returned error is ctx.Err() after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("HTTP server listening on %s", s.srv.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return ctx.Err()
}

func (s *Server) handleChat(c *gin.Context) {
	if s.chat == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: apiError{Reason: "chat is not configured"}})
		return
	}
	s.chat.ServeHTTP(c.Writer, c.Request)
}
