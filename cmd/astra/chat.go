package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"astra/internal/astro"
	"astra/internal/config"
	"astra/internal/conversation"
	astraerrors "astra/internal/errors"
	"astra/internal/logging"
	"astra/internal/session"
	"astra/internal/storage"
	"astra/internal/storage/sqlite"
)

func newChatCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the reading bot in an interactive terminal session",
		Long: `Start an interactive session against the local database. The same
conversation flows the Telegram bot runs are available here: set your birth
date step by step, then ask for horoscopes, numerology, and compatibility.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntimeConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runChat(cfg)
		},
	}
}

// chatSession is one REPL run: a local engine over the shared database,
// with sessions held in memory for the lifetime of the process.
type chatSession struct {
	engine *conversation.Engine
	store  storage.Store
	userID string
}

func runChat(cfg config.Config) error {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine := conversation.NewEngine(session.NewMemoryStore(), store,
		conversation.WithSessionTimeout(cfg.Session.Timeout()),
		conversation.WithFactStore(store),
		conversation.WithLogger(logging.Nop()),
	)

	cs := &chatSession{engine: engine, store: store, userID: localUserID()}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "you> ",
		HistoryFile:       historyFile(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
	})
	if err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("%s %s\n", bold("astra"), gray(appVersion()))
	fmt.Println(gray("Type help for commands, profile <sign> for a sign profile, exit to leave."))
	fmt.Println()

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		switch strings.ToLower(text) {
		case "exit", "quit", "q":
			fmt.Println(yellow("Goodbye!"))
			return nil
		}

		if reply := cs.respond(ctx, text); reply != "" {
			fmt.Println(reply)
			fmt.Println()
		}
	}

	fmt.Println(yellow("Goodbye!"))
	return nil
}

// localUserID keys readings per OS account, so a saved birth date survives
// across runs of the same user against the same database.
func localUserID() string {
	if name := os.Getenv("USER"); name != "" {
		return "cli-" + name
	}
	return "cli-local"
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".astra_history")
}

// respond mirrors the chat channels: slash commands, cancel words, then
// a step in the active flow, then plain-phrase intents. Stats resolve here
// because the terminal user owns the database.
func (cs *chatSession) respond(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if strings.EqualFold(fields[0], "profile") {
		if len(fields) != 2 {
			return red("Usage: profile <sign>")
		}
		sign, ok := astro.ParseSign(fields[1])
		if !ok {
			return red(fmt.Sprintf("Unknown zodiac sign %q.", fields[1]))
		}
		return conversation.RenderProfile(astro.ProfileOf(sign))
	}

	if strings.HasPrefix(text, "/") {
		intent := conversation.ResolveCommand(fields[0])
		if intent == conversation.IntentNone {
			return red("Unknown command. Type help to see what I can do.")
		}
		return cs.dispatchIntent(ctx, intent)
	}

	if conversation.CancelPhrase(text) {
		return cs.renderOutcome(cs.engine.Cancel(ctx, cs.userID))
	}

	out, err := cs.engine.HandleInput(ctx, cs.userID, text)
	if err == nil {
		return conversation.Render(out)
	}
	if astraerrors.IsSessionNotFound(err) {
		if intent := conversation.ResolvePhrase(text); intent != conversation.IntentNone {
			return cs.dispatchIntent(ctx, intent)
		}
		return conversation.RenderMenu()
	}
	return cs.renderError(err)
}

func (cs *chatSession) dispatchIntent(ctx context.Context, intent conversation.Intent) string {
	switch intent {
	case conversation.IntentStart:
		return conversation.RenderWelcome(os.Getenv("USER"))
	case conversation.IntentHelp:
		return conversation.RenderHelp()
	case conversation.IntentSetDate:
		return cs.renderOutcome(cs.engine.StartFlow(ctx, cs.userID, session.FlowSetBirthDate))
	case conversation.IntentCompatibility:
		return cs.renderOutcome(cs.engine.StartFlow(ctx, cs.userID, session.FlowCheckCompatibility))
	case conversation.IntentCancel:
		return cs.renderOutcome(cs.engine.Cancel(ctx, cs.userID))
	case conversation.IntentHoroscope:
		reading, err := cs.engine.TodayReading(ctx, cs.userID)
		if err != nil {
			return cs.renderError(err)
		}
		return conversation.RenderReading(reading)
	case conversation.IntentLifePath:
		rec, lp, err := cs.engine.Numerology(ctx, cs.userID)
		if err != nil {
			return cs.renderError(err)
		}
		return conversation.RenderNumerology(rec, lp)
	case conversation.IntentLucky:
		rec, lp, err := cs.engine.Numerology(ctx, cs.userID)
		if err != nil {
			return cs.renderError(err)
		}
		return conversation.RenderLucky(rec.Sign, astro.LuckyNumber(lp.Value, time.Now()))
	case conversation.IntentFact:
		fact, err := cs.engine.RandomInsight(ctx)
		if err != nil {
			return red("No facts available right now. Try again later!")
		}
		return conversation.RenderFact(fact)
	case conversation.IntentStats:
		stats, err := cs.store.Stats(ctx)
		if err != nil {
			return cs.renderError(err)
		}
		return conversation.RenderStats(stats)
	case conversation.IntentSubscribe, conversation.IntentUnsubscribe:
		return "Subscriptions live in the Telegram bot, where I can reach you every morning."
	case conversation.IntentBroadcast:
		return gray("Broadcasts go out from the serve process. Start one with: astra serve")
	default:
		return conversation.RenderMenu()
	}
}

func (cs *chatSession) renderOutcome(out conversation.Outcome, err error) string {
	if err != nil {
		return cs.renderError(err)
	}
	return conversation.Render(out)
}

func (cs *chatSession) renderError(err error) string {
	return red(conversation.RenderError(err))
}
