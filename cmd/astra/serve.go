package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"astra/internal/broadcast"
	"astra/internal/channels/telegram"
	"astra/internal/channels/web"
	"astra/internal/config"
	"astra/internal/conversation"
	"astra/internal/logging"
	"astra/internal/observability"
	serverhttp "astra/internal/server/http"
	"astra/internal/session"
	"astra/internal/storage/sqlite"
)

const shutdownGrace = 10 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the HTTP API, and the daily broadcaster",
		Long: `Run every enabled surface in one process: the Telegram bot (when a
token is configured), the HTTP API with the web chat endpoint, the session
janitor, and the daily horoscope broadcaster. Shuts down cleanly on SIGINT
or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, meta, err := loadRuntimeConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runServe(cfg, meta)
		},
	}
}

func runServe(cfg config.Config, meta config.Metadata) error {
	obs, err := observability.New(cfg.Observability)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	logging.SetDefault(obs.Logger)
	logger := logging.NewComponentLogger("Serve")

	logger.Info("Starting astra %s (environment %s)", appVersion(), cfg.Environment)
	if meta.FilePath() != "" {
		logger.Info("Configuration loaded from %s", meta.FilePath())
	}

	if !cfg.TelegramActive() && !cfg.Server.Enabled {
		return errors.New("nothing to run: no telegram token and the HTTP server is disabled")
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing storage: %v", err)
		}
	}()

	sessions := session.NewMemoryStore(session.WithShardCount(cfg.Session.ShardCount))
	janitor := session.NewJanitor(sessions,
		session.WithJanitorInterval(cfg.Session.JanitorInterval()),
		session.WithJanitorLogger(logging.NewComponentLogger("Janitor")),
	)

	engine := conversation.NewEngine(sessions, store,
		conversation.WithSessionTimeout(cfg.Session.Timeout()),
		conversation.WithFactStore(store),
		conversation.WithLogger(logging.NewComponentLogger("Engine")),
		conversation.WithMetrics(obs.Metrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return janitor.Run(ctx) })

	if cfg.TelegramActive() {
		bot, err := telegram.NewBotClient(cfg.Telegram.Token, cfg.Telegram.PollTimeoutSeconds,
			logging.NewComponentLogger("Telegram"))
		if err != nil {
			return err
		}
		logger.Info("Telegram bot authorized as @%s", bot.Username())

		bcaster, err := broadcast.New(
			broadcast.Config{
				DailyHour:   cfg.Broadcast.DailyHour,
				MaxUsers:    cfg.Broadcast.MaxUsers,
				Concurrency: cfg.Broadcast.Concurrency,
			},
			store, store, bot,
			broadcast.WithLogger(logging.NewComponentLogger("Broadcast")),
			broadcast.WithMetrics(obs.Metrics),
			broadcast.WithFactStore(store),
		)
		if err != nil {
			return err
		}

		gateway, err := telegram.NewGateway(
			telegram.Config{
				AdminIDs:       cfg.Telegram.AdminIDs,
				RateLimitRPS:   cfg.Telegram.RateLimitRPS,
				RateLimitBurst: cfg.Telegram.RateLimitBurst,
				DedupCacheSize: cfg.Telegram.DedupCacheSize,
			},
			engine, store,
			telegram.WithMessenger(bot),
			telegram.WithUpdateSource(bot),
			telegram.WithBroadcaster(bcaster),
			telegram.WithLogger(logging.NewComponentLogger("Gateway")),
			telegram.WithMetrics(obs.Metrics),
		)
		if err != nil {
			return err
		}

		g.Go(func() error { return gateway.Run(ctx) })
		g.Go(func() error { return bcaster.RunDaily(ctx) })
	} else {
		logger.Info("Telegram channel disabled: no token configured")
	}

	if cfg.Server.Enabled {
		chat, err := web.NewGateway(engine,
			web.WithLogger(logging.NewComponentLogger("WebChat")),
			web.WithMetrics(obs.Metrics),
		)
		if err != nil {
			return err
		}

		srv, err := serverhttp.New(
			serverhttp.Config{
				Host:           cfg.Server.Host,
				Port:           cfg.Server.Port,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RateLimit: serverhttp.RateLimitConfig{
					RequestsPerSecond: cfg.Server.RateLimitRPS,
					Burst:             cfg.Server.RateLimitBurst,
				},
			},
			store,
			serverhttp.WithLogger(logging.NewComponentLogger("HTTP")),
			serverhttp.WithMetrics(obs.Metrics),
			serverhttp.WithChatHandler(chat),
		)
		if err != nil {
			return err
		}

		g.Go(func() error { return srv.Run(ctx) })
	}

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if shutdownErr := obs.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("Observability shutdown: %v", shutdownErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
