package homework

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/metrics"
)

const (
	// DefaultRetryPeriod пауза между циклами опроса.
	DefaultRetryPeriod = 600 * time.Second

	errorMessageTemplate = "Сбой в работе программы: %v"
)

// Poller опрашивает API и рассылает уведомления об изменении статусов.
type Poller struct {
	fetcher  domain.StatusFetcher
	notifier domain.Notifier
	dedup    domain.Cache
	journal  domain.StatusJournal
	events   domain.EventPublisher
	log      zerolog.Logger

	interval time.Duration
	dedupTTL time.Duration
	now      func() time.Time

	cursor      atomic.Int64
	startedAt   atomic.Int64
	lastSuccess atomic.Int64
	lastError   atomic.Value
}

// Option настраивает Poller.
type Option func(*Poller)

// WithInterval задаёт паузу между циклами.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDedup включает подавление повторных уведомлений.
func WithDedup(cache domain.Cache, ttl time.Duration) Option {
	return func(p *Poller) {
		p.dedup = cache
		p.dedupTTL = ttl
	}
}

// WithJournal включает сохранение истории уведомлений.
func WithJournal(journal domain.StatusJournal) Option {
	return func(p *Poller) { p.journal = journal }
}

// WithEvents включает публикацию событий.
func WithEvents(events domain.EventPublisher) Option {
	return func(p *Poller) { p.events = events }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPoller создаёт опросчик. Курсор инициализируется текущим временем.
func NewPoller(fetcher domain.StatusFetcher, notifier domain.Notifier, log zerolog.Logger, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		notifier: notifier,
		log:      log,
		interval: DefaultRetryPeriod,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cursor.Store(p.now().Unix())
	p.lastError.Store("")
	return p
}

// Cursor возвращает текущее значение from_date.
func (p *Poller) Cursor() int64 {
	return p.cursor.Load()
}

// Run крутит циклы опроса до отмены контекста.
func (p *Poller) Run(ctx context.Context) error {
	p.startedAt.Store(p.now().Unix())
	p.log.Info().Int64("cursor", p.Cursor()).Dur("interval", p.interval).Msg("poller: запуск опроса")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.report(ctx, err)
		}
		timer.Reset(p.interval)
	}
}

// RunCycle выполняет один цикл: запрос, проверку ответа и рассылку.
// Курсор сдвигается, если ответ получен и все уведомления доставлены.
func (p *Poller) RunCycle(ctx context.Context) (err error) {
	defer func() {
		metrics.ObservePollCycle(domain.ErrorKind(err), p.Cursor())
		if err != nil {
			p.lastError.Store(err.Error())
		} else {
			p.lastError.Store("")
		}
	}()

	body, err := p.fetcher.Fetch(ctx, p.Cursor())
	if err != nil {
		return err
	}
	records, err := CheckResponse(body)
	if err != nil {
		return err
	}

	var recordErrs []error
	for _, record := range records {
		message, err := ParseStatus(record)
		if err != nil {
			recordErrs = append(recordErrs, err)
			continue
		}
		if err := p.deliver(ctx, record, message); err != nil {
			return err
		}
	}

	next := p.now().Unix()
	if response, ok := asMap(body); ok {
		if current, ok := domain.APIResponse(response).CurrentDate(); ok {
			next = current
		}
	}
	p.cursor.Store(next)
	p.lastSuccess.Store(p.now().Unix())
	p.log.Debug().Int("homeworks", len(records)).Int64("cursor", next).Msg("poller: цикл завершён")

	return errors.Join(recordErrs...)
}

func (p *Poller) deliver(ctx context.Context, record domain.HomeworkRecord, message string) error {
	send := func() error { return p.notifier.Send(ctx, message) }

	key, keyed := record.DedupKey()
	if p.dedup != nil && keyed {
		err := p.dedup.Once(ctx, key, p.dedupTTL, send)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrDuplicate):
			metrics.NotificationsSkipped.Inc()
			p.log.Debug().Str("key", key).Msg("poller: уведомление уже отправлялось")
			return nil
		case errors.Is(err, domain.ErrSendMessage):
			return err
		default:
			p.log.Warn().Err(err).Msg("poller: кэш недоступен, отправляем без проверки повторов")
			if err := send(); err != nil {
				return err
			}
		}
	} else if err := send(); err != nil {
		return err
	}

	metrics.NotificationsSent.Inc()
	p.record(ctx, domain.NewStatusEvent(record, message, p.now()))
	return nil
}

func (p *Poller) record(ctx context.Context, event domain.StatusEvent) {
	log := p.log.With().Str("event_id", event.ID).Str("homework", event.HomeworkName).Logger()
	if p.journal != nil {
		if err := p.journal.SaveStatusEvent(ctx, event); err != nil {
			log.Error().Err(err).Msg("poller: не удалось сохранить событие в журнал")
		}
	}
	if p.events != nil {
		if err := p.events.Publish(ctx, event); err != nil {
			log.Error().Err(err).Msg("poller: не удалось опубликовать событие")
		}
	}
}

// report сообщает об ошибке цикла в чат. Ошибка отправки отчёта только логируется.
func (p *Poller) report(ctx context.Context, cycleErr error) {
	message := fmt.Sprintf(errorMessageTemplate, cycleErr)
	p.log.Error().Err(cycleErr).Str("kind", domain.ErrorKind(cycleErr)).Msg(message)
	if err := p.notifier.Send(ctx, message); err != nil {
		p.log.Error().Err(err).Msg("poller: не удалось сообщить об ошибке в чат")
	}
}

// Health описывает состояние опросчика для /healthz.
type Health struct {
	Status      string `json:"status"`
	Cursor      int64  `json:"cursor"`
	LastSuccess int64  `json:"last_success,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Health возвращает состояние. Опросчик считается здоровым, если успешный цикл
// был не позже трёх интервалов назад.
func (p *Poller) Health() (Health, bool) {
	h := Health{
		Cursor:      p.Cursor(),
		LastSuccess: p.lastSuccess.Load(),
		LastError:   p.lastError.Load().(string),
	}
	reference := h.LastSuccess
	if reference == 0 {
		reference = p.startedAt.Load()
	}
	healthy := reference != 0 && p.now().Unix()-reference <= int64(3*p.interval/time.Second)
	h.Status = "ok"
	if !healthy {
		h.Status = "degraded"
	}
	return h, healthy
}
