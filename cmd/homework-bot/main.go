package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"homework-bot/internal/adapters/practicum"
	"homework-bot/internal/adapters/repo"
	"homework-bot/internal/adapters/telegram"
	"homework-bot/internal/domain"
	"homework-bot/internal/infra/cache"
	"homework-bot/internal/infra/config"
	"homework-bot/internal/infra/db"
	apphttp "homework-bot/internal/infra/http"
	applog "homework-bot/internal/infra/log"
	"homework-bot/internal/infra/metrics"
	"homework-bot/internal/infra/queue"
	"homework-bot/internal/usecase/homework"
)

const eventsMaxLen = 1000

func main() {
	cfg := config.Load()
	logger, logCloser, err := applog.NewLogger(cfg.AppEnv, cfg.LogFile)
	if err != nil {
		logger, _, _ = applog.NewLogger(cfg.AppEnv, "")
		logger.Error().Err(err).Msg("не удалось открыть файл логов, пишем только в stdout")
	}
	defer logCloser.Close()

	if err := config.CheckTokens(cfg); err != nil {
		for _, name := range cfg.MissingTokens() {
			logger.WithLevel(zerolog.FatalLevel).Str("token", name).Msgf("Токен %s не найден!", name)
		}
		logger.Fatal().Err(err).Msg("запуск невозможен")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	client, err := practicum.New(cfg.Practicum.Endpoint, cfg.Practicum.Token, practicum.WithTimeout(cfg.Practicum.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать клиента API")
	}

	botAPI, err := telegram.Connect(ctx, cfg.Telegram.Token, logger.With().Str("component", "telegram").Logger())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("бот остановлен до подключения к Telegram")
			return
		}
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram.ChatID, logger.With().Str("component", "notifier").Logger())

	opts := []homework.Option{homework.WithInterval(cfg.RetryPeriod)}
	var publishers queue.Fanout

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis недоступен при старте")
		}
		cancel()
		opts = append(opts, homework.WithDedup(cache.NewRedis(rdb), cfg.DedupTTL))
		publishers = append(publishers, queue.NewRedisEventQueue(rdb, cfg.EventsKey, eventsMaxLen))
	} else {
		opts = append(opts, homework.WithDedup(cache.NewMemory(), cfg.DedupTTL))
	}

	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitEventQueue(cfg.RabbitURL, cfg.EventsKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		publishers = append(publishers, rabbit)
	}
	if len(publishers) > 0 {
		opts = append(opts, homework.WithEvents(publishers))
	}

	if cfg.PGDSN != "" {
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
		}
		defer pool.Close()
		journal := repo.NewPostgres(pool)
		if err := journal.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("не удалось подготовить схему журнала")
		}
		opts = append(opts, homework.WithJournal(journal))
	}

	poller := homework.NewPoller(client, notifier, logger.With().Str("component", "poller").Logger(), opts...)

	if cfg.MetricsAddr != "" {
		srv := apphttp.NewServer(logger.With().Str("component", "http").Logger(), cfg.MetricsAddr, registry, func() (any, bool) {
			health, ok := poller.Health()
			return health, ok
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("HTTP сервер остановлен")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP сервер: ошибка остановки")
			}
		}()
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("опрос остановлен с ошибкой")
	}
	logger.Info().Msg("бот остановлен")
}

var _ domain.Notifier = (*telegram.Notifier)(nil)
var _ domain.StatusFetcher = (*practicum.Client)(nil)
