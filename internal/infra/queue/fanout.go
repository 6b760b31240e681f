package queue

import (
	"context"
	"errors"

	"homework-bot/internal/domain"
)

// Fanout публикует событие во все настроенные очереди.
type Fanout []domain.EventPublisher

// Publish вызывает всех издателей и объединяет их ошибки.
func (f Fanout) Publish(ctx context.Context, event domain.StatusEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
