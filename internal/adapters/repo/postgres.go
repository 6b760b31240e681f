package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"homework-bot/internal/domain"
	"homework-bot/internal/infra/metrics"
)

// Execer описывает часть pgxpool.Pool, нужную журналу.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Postgres хранит журнал доставленных уведомлений.
type Postgres struct {
	pool Execer
}

var _ domain.StatusJournal = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool Execer) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу журнала, если её ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS homework_status_events (
    event_id         UUID PRIMARY KEY,
    homework_id      TEXT NOT NULL DEFAULT '',
    homework_name    TEXT NOT NULL,
    lesson_name      TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    verdict          TEXT NOT NULL,
    reviewer_comment TEXT NOT NULL DEFAULT '',
    message          TEXT NOT NULL,
    observed_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS homework_status_events_name_idx
    ON homework_status_events (homework_name, observed_at DESC);
`)
	metrics.ObserveNetworkRequest("postgres", "schema", "homework_status_events", start, err)
	return err
}

// SaveStatusEvent сохраняет событие доставки уведомления.
func (p *Postgres) SaveStatusEvent(ctx context.Context, event domain.StatusEvent) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO homework_status_events
    (event_id, homework_id, homework_name, lesson_name, status, verdict, reviewer_comment, message, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) DO NOTHING
`, event.ID, event.HomeworkID, event.HomeworkName, event.LessonName, event.Status, event.Verdict, event.ReviewerComment, event.Message, event.ObservedAt)
	metrics.ObserveNetworkRequest("postgres", "homework_status_events_insert", "homework_status_events", start, err)
	return err
}
