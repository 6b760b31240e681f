package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_cycles_total",
		Help: "Количество циклов опроса API",
	}, []string{"result"})
	PollErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_errors_total",
		Help: "Ошибки цикла опроса по классам",
	}, []string{"kind"})
	PollCursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "poll_cursor_seconds",
		Help: "Текущее значение курсора from_date",
	})
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Отправленные уведомления о смене статуса",
	})
	NotificationsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_deduplicated_total",
		Help: "Уведомления, пропущенные как повторные",
	})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PollCycles,
		PollErrors,
		PollCursor,
		NotificationsSent,
		NotificationsSkipped,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest учитывает сетевой вызов внешнего сервиса (API, бот, БД, очередь).
// Пустые метки заменяются на "unknown".
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	labels := prometheus.Labels{
		"component": orUnknown(component),
		"operation": orUnknown(operation),
		"target":    orUnknown(target),
		"status":    requestStatus(err),
	}
	NetworkRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.With(labels).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func requestStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObservePollCycle фиксирует завершение цикла опроса.
func ObservePollCycle(kind string, cursor int64) {
	if kind == "" || kind == "none" {
		PollCycles.WithLabelValues("success").Inc()
	} else {
		PollCycles.WithLabelValues("error").Inc()
		PollErrors.WithLabelValues(kind).Inc()
	}
	PollCursor.Set(float64(cursor))
}
