package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/metrics"
)

// RabbitEventQueue публикует события в очередь RabbitMQ через default exchange.
type RabbitEventQueue struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ domain.EventPublisher = (*RabbitEventQueue)(nil)

// NewRabbitEventQueue создаёт издателя. Подключение устанавливается лениво.
func NewRabbitEventQueue(amqpURL, queue string) (*RabbitEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	if _, err := amqp.ParseURI(amqpURL); err != nil {
		return nil, fmt.Errorf("parse amqp url: %w", err)
	}
	return &RabbitEventQueue{url: amqpURL, queue: queue}, nil
}

// Publish отправляет событие как persistent JSON-сообщение.
func (q *RabbitEventQueue) Publish(ctx context.Context, event domain.StatusEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	start := time.Now()
	ch, err := q.channel()
	if err != nil {
		metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
		return err
	}
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.ObservedAt,
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		q.reset()
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (q *RabbitEventQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reset()
}

func (q *RabbitEventQueue) channel() (*amqp.Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	q.reset()
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	q.conn, q.ch = conn, ch
	return ch, nil
}

func (q *RabbitEventQueue) reset() error {
	var errs []error
	if q.ch != nil {
		if err := q.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		q.ch = nil
	}
	if q.conn != nil {
		if err := q.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		q.conn = nil
	}
	return errors.Join(errs...)
}
