// Package telegram wraps the Bot API client used for outbound messages.
// Inbound traffic arrives through the webhook endpoint; this package only
// sends.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers text messages through the Telegram Bot API.
type Sender struct {
	api *tgbotapi.BotAPI
}

// NewSender authorizes against the Bot API with the given token.
func NewSender(token string) (*Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Sender{api: api}, nil
}

// SendMessage sends plain text to a chat. The underlying client has no
// context support; ctx is checked up front so cancelled work stops early.
func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
