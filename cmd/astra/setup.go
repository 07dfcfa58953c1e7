package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"astra/internal/config"
)

func newSetupCommand(flags *rootFlags) *cobra.Command {
	var (
		token  string
		admins []int64
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save the Telegram bot token and admin list to the config file",
		Long: `Store the Telegram bot token in the YAML config file. Without --token
the token is read from the terminal without echo. Existing settings in the
file are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				read, err := promptToken()
				if err != nil {
					return err
				}
				token = read
			}
			if token == "" {
				return errors.New("no token provided")
			}

			var opts []config.Option
			if path := strings.TrimSpace(flags.configPath); path != "" {
				opts = append(opts, config.WithConfigPath(path))
			}
			path, err := config.SaveCredentials(token, admins, opts...)
			if err != nil {
				return err
			}

			fmt.Printf("%s Credentials saved to %s\n", green("✓"), bold(path))
			if len(admins) > 0 {
				fmt.Printf("%s %d admin(s) may use /stats and /broadcast\n", green("✓"), len(admins))
			}
			fmt.Printf("\nStart the bot with: %s\n", cyan("astra serve"))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Telegram bot token (prompted when omitted)")
	cmd.Flags().Int64SliceVar(&admins, "admins", nil, "Telegram user IDs allowed to run admin commands")
	return cmd
}

// promptToken reads the token without echo on a terminal, and falls back to
// a plain line read when stdin is piped.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print("Telegram bot token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
