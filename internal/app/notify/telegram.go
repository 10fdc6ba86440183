package notify

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/Ptt-Alertor/logrus"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramLimit is the Bot API's maximum message length.
const telegramLimit = 4096

// TelegramSink posts the text body of every message to one chat. It ignores
// To and refuses private messages.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink authorizes the bot; client may be nil.
func NewTelegramSink(token string, chatID int64, client *http.Client) (*TelegramSink, error) {
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot initialize: %w", err)
	}
	log.Info("Telegram Authorized on " + bot.Self.UserName)
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Private {
		return fmt.Errorf("telegram: %w", ErrNoRecipientSink)
	}
	text := msg.Subject + "\n\n" + msg.Text
	if r := []rune(text); len(r) > telegramLimit {
		text = string(r[:telegramLimit-1]) + "…"
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
