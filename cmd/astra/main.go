// Command astra runs the astrology reading service: the Telegram bot, the
// HTTP API with the web chat channel, and the daily broadcaster, plus local
// one-shot reading commands for the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"astra/internal/config"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: ")+err.Error())
		os.Exit(1)
	}
}

// rootFlags carries the persistent flags every subcommand may consult.
type rootFlags struct {
	configPath    string
	dbPath        string
	logLevel      string
	environment   string
	telegramToken string
	port          int
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "astra",
		Short: "Astrology and numerology readings for chat channels and the terminal",
		Long: fmt.Sprintf(`%s

Zodiac signs, life path numbers, compatibility scores, and daily horoscopes.
Runs as a Telegram bot with a web chat channel and an HTTP API, or answers
one-shot questions straight from the terminal.

%s
  astra serve                        # Run the bot, API server, and broadcaster
  astra chat                         # Local chat session for development
  astra zodiac 25-12-1990            # One-shot sign lookup
  astra compatibility 25-12-1990 14-02-1988
  astra setup                        # Store the bot token and admin ids`,
			bold("astra "+appVersion()),
			bold("EXAMPLES:")),
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to the config file")
	pf.StringVar(&flags.dbPath, "db", "", "Path to the sqlite database file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.environment, "environment", "", "Deployment environment name")
	pf.StringVar(&flags.telegramToken, "telegram-token", "", "Telegram bot token")
	pf.IntVarP(&flags.port, "port", "p", 0, "HTTP API port")

	rootCmd.AddCommand(
		newServeCommand(flags),
		newChatCommand(flags),
		newZodiacCommand(),
		newLifePathCommand(),
		newCompatibilityCommand(),
		newHoroscopeCommand(),
		newSetupCommand(flags),
		newVersionCommand(),
	)

	return rootCmd
}

// loadRuntimeConfig layers defaults, the discovered config file, the
// environment, and whichever flags were set explicitly.
func loadRuntimeConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, config.Metadata, error) {
	var opts []config.Option
	if path := discoverConfigFile(flags.configPath); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	ov := config.Overrides{}
	changed := cmd.Flags().Changed
	if changed("environment") {
		ov.Environment = &flags.environment
	}
	if changed("telegram-token") {
		ov.TelegramToken = &flags.telegramToken
	}
	if changed("db") {
		ov.DBPath = &flags.dbPath
	}
	if changed("log-level") {
		ov.LogLevel = &flags.logLevel
	}
	if changed("port") {
		ov.ServerPort = &flags.port
	}
	opts = append(opts, config.WithOverrides(ov))

	return config.Load(opts...)
}

// discoverConfigFile resolves the config file location: the explicit flag
// wins, otherwise viper searches the working directory and the home
// directory. An empty result means the loader falls back to its defaults.
func discoverConfigFile(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	v := viper.New()
	v.SetConfigName("astra")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}
