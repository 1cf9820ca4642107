package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hashtag-ingest/internal/adapters/repo"
	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/config"
	"hashtag-ingest/internal/infra/db"
	applog "hashtag-ingest/internal/infra/log"
	"hashtag-ingest/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.RequireBearer(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет токена API")
	}
	if cfg.PGDSN == "" {
		logger.Fatal().Msg("scheduler: не указан адрес БД (PG_DSN)")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var ingestQueue domain.IngestQueue
	switch {
	case cfg.RabbitURL != "":
		rabbitQueue, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		ingestQueue = rabbitQueue
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		ingestQueue = queue.NewRedisIngestQueue(redisClient, cfg.Queues.Ingest)
	default:
		logger.Fatal().Msg("scheduler: нужна очередь — укажите RABBITMQ_URL или REDIS_ADDR")
	}

	logger.Info().Dur("interval", cfg.Ingest.TickInterval).Msg("scheduler: запуск")

	ticker := time.NewTicker(cfg.Ingest.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановлен")
			return
		case <-ticker.C:
			enqueueAll(ctx, cfg, logger, repoAdapter, ingestQueue)
		}
	}
}

// enqueueAll ставит задачу на каждый включённый тег. Классы, для
// которых нет токена, пропускаются целиком.
func enqueueAll(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger, hashtags domain.HashtagRepo, ingestQueue domain.IngestQueue) {
	for _, endpoint := range []domain.EndpointClass{domain.EndpointStandard, domain.EndpointAcademic} {
		if _, err := cfg.BearerFor(endpoint); err != nil {
			continue
		}
		tags, err := hashtags.ListEnabled(ctx, endpoint)
		if err != nil {
			logger.Error().Err(err).Str("endpoint", string(endpoint)).Msg("scheduler: ошибка выборки тегов")
			continue
		}
		for _, tag := range tags {
			job := domain.IngestJob{
				ID:              uuid.NewString(),
				HashtagID:       tag.ID,
				Endpoint:        endpoint,
				ExpandReplies:   cfg.Ingest.ExpandReplies,
				IncludeRetweets: cfg.Ingest.IncludeRetweets,
				RequestedAt:     time.Now().UTC(),
				Cause:           domain.IngestCauseScheduled,
			}
			// Полный архив всегда ходит по явному окну: берём
			// интервал с прошлого тика.
			if endpoint == domain.EndpointAcademic {
				end := time.Now().UTC()
				start := end.Add(-cfg.Ingest.TickInterval)
				job.WindowStart, job.WindowEnd = &start, &end
			}
			if err := ingestQueue.Enqueue(ctx, job); err != nil {
				logger.Error().Err(err).Str("hashtag", tag.Name).Msg("scheduler: не удалось поставить задачу")
				continue
			}
			logger.Info().Str("hashtag", tag.Name).Str("job_id", job.ID).Msg("scheduler: задача поставлена")
		}
	}
}
