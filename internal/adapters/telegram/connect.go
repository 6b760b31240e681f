package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const requestTimeout = 30 * time.Second

// Connect создаёт клиента Bot API. NewBotAPI проверяет токен запросом getMe:
// сетевые сбои повторяются с экспоненциальной паузой до отмены ctx,
// отказ в авторизации прерывает попытки сразу.
func Connect(ctx context.Context, token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: requestTimeout}
	dial := func() (*tgbotapi.BotAPI, error) {
		return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	}
	return connect(ctx, dial, newBackOff(), log)
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

func connect(ctx context.Context, dial func() (*tgbotapi.BotAPI, error), b backoff.BackOff, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	op := func() (*tgbotapi.BotAPI, error) {
		bot, err := dial()
		if err != nil && IsAuthError(err) {
			return nil, backoff.Permanent(err)
		}
		return bot, err
	}
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retry_in", next).Msg("telegram: getMe не удался, повторяем")
	}
	bot, err := backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, fmt.Errorf("подключение к Bot API: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram: бот авторизован")
	return bot, nil
}

// IsAuthError сообщает, что Bot API отверг токен.
// Для токена неверного формата Telegram отвечает 404.
func IsAuthError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusNotFound
}
