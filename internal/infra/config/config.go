package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"

	"hashtag-ingest/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Twitter struct {
		BearerToken         string        `envconfig:"BEARER_TOKEN"`
		AcademicBearerToken string        `envconfig:"ACADEMIC_BEARER_TOKEN"`
		BaseURL             string        `envconfig:"TWITTER_BASE_URL" default:"https://api.twitter.com/2"`
		MaxResults          int           `envconfig:"TWITTER_MAX_RESULTS" default:"100"`
		RateLimitCooldown   time.Duration `envconfig:"TWITTER_RATE_LIMIT_COOLDOWN" default:"60s"`
		RateLimitRetries    int           `envconfig:"TWITTER_RATE_LIMIT_RETRIES" default:"5"`
		RequestInterval     time.Duration `envconfig:"TWITTER_REQUEST_INTERVAL" default:"1s"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Ingest struct {
		ReplyWorkers    int           `envconfig:"INGEST_REPLY_WORKERS" default:"4"`
		RunTimeout      time.Duration `envconfig:"INGEST_RUN_TIMEOUT" default:"10m"`
		ExpandReplies   bool          `envconfig:"INGEST_EXPAND_REPLIES" default:"false"`
		IncludeRetweets bool          `envconfig:"INGEST_INCLUDE_RETWEETS" default:"false"`
		TickInterval    time.Duration `envconfig:"INGEST_TICK_INTERVAL" default:"15m"`
	} `envconfig:""`

	Queues struct {
		Ingest string `envconfig:"INGEST_QUEUE_KEY" default:"ingest_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// RequireBearer проверяет, что задан хотя бы один токен API.
// Сервис без единого токена не сможет выполнить ни одну задачу,
// поэтому это фатальное условие старта, а не пропуск задач на лету.
func (c AppConfig) RequireBearer() error {
	if c.Twitter.BearerToken == "" && c.Twitter.AcademicBearerToken == "" {
		return errors.New("не задан ни BEARER_TOKEN, ни ACADEMIC_BEARER_TOKEN")
	}
	return nil
}

// BearerFor возвращает токен для класса эндпоинта. Отсутствие токена
// для запрошенного класса — фатальное условие старта.
func (c AppConfig) BearerFor(endpoint domain.EndpointClass) (string, error) {
	switch endpoint {
	case domain.EndpointAcademic:
		if c.Twitter.AcademicBearerToken == "" {
			return "", fmt.Errorf("не задан ACADEMIC_BEARER_TOKEN для класса %s", endpoint)
		}
		return c.Twitter.AcademicBearerToken, nil
	default:
		if c.Twitter.BearerToken == "" {
			return "", fmt.Errorf("не задан BEARER_TOKEN для класса %s", endpoint)
		}
		return c.Twitter.BearerToken, nil
	}
}
