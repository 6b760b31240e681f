package domain

import (
	"context"
	"time"
)

// StatusFetcher запрашивает статусы домашних работ начиная с курсора.
type StatusFetcher interface {
	Fetch(ctx context.Context, fromDate int64) (any, error)
}

// Notifier доставляет текстовые сообщения в настроенный чат.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Cache используется для простых TTL-хранилищ.
// Once возвращает ErrDuplicate, если ключ уже был обработан.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// StatusJournal сохраняет историю доставленных уведомлений.
type StatusJournal interface {
	SaveStatusEvent(ctx context.Context, event StatusEvent) error
}

// EventPublisher публикует события изменения статуса во внешние очереди.
type EventPublisher interface {
	Publish(ctx context.Context, event StatusEvent) error
}
