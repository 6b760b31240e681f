package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/metrics"
)

// BotAPI часть tgbotapi.BotAPI, через которую уходят сообщения.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет сообщения в один чат.
type Notifier struct {
	bot    BotAPI
	chatID string
	log    zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправителя. chatID может быть числом или @username канала.
func NewNotifier(bot BotAPI, chatID string, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, chatID: strings.TrimSpace(chatID), log: log}
}

// Send отправляет текст, при необходимости разбивая его на части.
func (n *Notifier) Send(ctx context.Context, text string) error {
	parts := SplitMessage(text)
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSendMessage, err)
		}
		msg, err := n.newMessage(part)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSendMessage, err)
		}
		start := time.Now()
		_, err = n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", n.chatID, start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return fmt.Errorf("%w: %v", domain.ErrSendMessage, err)
		}
	}
	n.log.Info().Str("chat", n.chatID).Msgf("Отправлено сообщение: %q", text)
	return nil
}

func (n *Notifier) newMessage(text string) (tgbotapi.MessageConfig, error) {
	if n.chatID == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("chat id is empty")
	}
	if id, err := strconv.ParseInt(n.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text), nil
	}
	username := n.chatID
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	return tgbotapi.NewMessageToChannel(username, text), nil
}
