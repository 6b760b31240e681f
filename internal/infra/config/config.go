package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"homework-bot/internal/domain"
)

// DefaultEndpoint адрес API статусов домашних работ.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev"`
	LogFile string `envconfig:"LOG_FILE"`

	Practicum struct {
		Token    string        `envconfig:"PRACTICUM_TOKEN"`
		Endpoint string        `envconfig:"PRACTICUM_ENDPOINT" default:"https://practicum.yandex.ru/api/user_api/homework_statuses/"`
		Timeout  time.Duration `envconfig:"PRACTICUM_TIMEOUT" default:"10s"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TELEGRAM_TOKEN"`
		ChatID string `envconfig:"TELEGRAM_CHAT_ID"`
	} `envconfig:""`

	RetryPeriod time.Duration `envconfig:"RETRY_PERIOD" default:"600s"`
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":9090"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	DedupTTL  time.Duration `envconfig:"DEDUP_TTL" default:"720h"`
	EventsKey string        `envconfig:"EVENTS_KEY" default:"homework_status_events"`

	PGDSN     string `envconfig:"PG_DSN"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`
}

// Load загружает конфиг из .env и окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает .env, если он есть, и разбирает переменные окружения.
// Уже заданные переменные окружения имеют приоритет над .env.
func Parse() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("чтение .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if cfg.DedupTTL <= 0 {
		return AppConfig{}, fmt.Errorf("DEDUP_TTL должен быть положительным, получено %s", cfg.DedupTTL)
	}
	return cfg, nil
}

// MissingTokens возвращает имена незаданных обязательных переменных.
func (c AppConfig) MissingTokens() []string {
	required := []struct {
		name  string
		value string
	}{
		{"PRACTICUM_TOKEN", c.Practicum.Token},
		{"TELEGRAM_TOKEN", c.Telegram.Token},
		{"TELEGRAM_CHAT_ID", c.Telegram.ChatID},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// CheckTokens проверяет наличие обязательных токенов.
func CheckTokens(c AppConfig) error {
	missing := c.MissingTokens()
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: не заданы %s", domain.ErrToken, strings.Join(missing, ", "))
}
