package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	astraerrors "astra/internal/errors"
	"astra/internal/logging"
)

// Update is the channel-local view of one inbound message. The gateway and
// its tests work with this type only; the SDK never crosses the boundary.
type Update struct {
	ID        int
	MessageID int
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
	Command   string // without the leading slash, "" for free text
	Args      string // text after the command
}

// Messenger sends replies to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// UpdateSource yields inbound updates until the context is cancelled or the
// source is closed.
type UpdateSource interface {
	Updates(ctx context.Context) (<-chan Update, error)
	Close()
}

// BotClient adapts the Telegram bot API SDK to the Messenger and UpdateSource
// interfaces.
type BotClient struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
	logger      logging.Logger
}

// NewBotClient authenticates against the bot API with the given token.
func NewBotClient(token string, pollTimeoutSeconds int, logger logging.Logger) (*BotClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot requires a token")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if pollTimeoutSeconds <= 0 {
		pollTimeoutSeconds = 30
	}
	return &BotClient{
		bot:         bot,
		pollTimeout: pollTimeoutSeconds,
		logger:      logging.OrNop(logger),
	}, nil
}

// Username returns the bot account's username.
func (c *BotClient) Username() string {
	return c.bot.Self.UserName
}

// SendText sends a plain-text message. The SDK call itself does not take a
// context, so cancellation is only checked up front. A 403 means the
// recipient blocked the bot; that error is marked permanent so send retries
// skip the chat instead of hammering it.
func (c *BotClient) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.bot.Send(msg); err != nil {
		wrapped := fmt.Errorf("telegram send to chat %d: %w", chatID, err)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
			return astraerrors.Permanent(wrapped)
		}
		return wrapped
	}
	return nil
}

// Updates starts long polling and converts SDK updates into local ones.
// The returned channel closes when ctx is cancelled.
func (c *BotClient) Updates(ctx context.Context) (<-chan Update, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	raw := c.bot.GetUpdatesChan(cfg)

	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case upd, ok := <-raw:
				if !ok {
					return
				}
				local, ok := convertUpdate(upd)
				if !ok {
					continue
				}
				select {
				case out <- local:
				case <-ctx.Done():
					c.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out, nil
}

// Close stops the long-poll loop.
func (c *BotClient) Close() {
	c.bot.StopReceivingUpdates()
}

// convertUpdate maps an SDK update onto the local Update type. Updates
// without a text message or a sender are dropped.
func convertUpdate(upd tgbotapi.Update) (Update, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Update{}, false
	}
	if msg.Text == "" {
		return Update{}, false
	}
	local := Update{
		ID:        upd.UpdateID,
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}
	if msg.IsCommand() {
		local.Command = msg.Command()
		local.Args = msg.CommandArguments()
	}
	return local, true
}
