package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hashtag-ingest/internal/adapters/repo"
	"hashtag-ingest/internal/adapters/twitterapi"
	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/cache"
	"hashtag-ingest/internal/infra/config"
	"hashtag-ingest/internal/infra/db"
	applog "hashtag-ingest/internal/infra/log"
	"hashtag-ingest/internal/infra/metrics"
	"hashtag-ingest/internal/infra/queue"
	ingestusecase "hashtag-ingest/internal/usecase/ingest"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	if err := cfg.RequireBearer(); err != nil {
		logger.Fatal().Err(err).Msg("ingester: нет токена API")
	}
	if cfg.PGDSN == "" {
		logger.Fatal().Msg("ingester: не указан адрес БД (PG_DSN)")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingester: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	var ingestQueue domain.IngestQueue
	switch {
	case cfg.RabbitURL != "":
		rabbitQueue, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
		if err != nil {
			logger.Fatal().Err(err).Msg("ingester: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		ingestQueue = rabbitQueue
	case redisClient != nil:
		ingestQueue = queue.NewRedisIngestQueue(redisClient, cfg.Queues.Ingest)
	default:
		logger.Fatal().Msg("ingester: нужна очередь — укажите RABBITMQ_URL или REDIS_ADDR")
	}

	// Гейт паузы общий: через Redis им делятся все экземпляры воркера.
	var cooldown domain.CooldownGate
	if redisClient != nil {
		cooldown = cache.NewRedisCooldown(redisClient, "twitter:cooldown")
	} else {
		cooldown = twitterapi.NewMemoryCooldown()
	}

	source := twitterapi.NewClient(twitterapi.Config{
		BaseURL:           cfg.Twitter.BaseURL,
		BearerStandard:    cfg.Twitter.BearerToken,
		BearerAcademic:    cfg.Twitter.AcademicBearerToken,
		MaxResults:        cfg.Twitter.MaxResults,
		RateLimitCooldown: cfg.Twitter.RateLimitCooldown,
		RateLimitRetries:  cfg.Twitter.RateLimitRetries,
		RequestInterval:   cfg.Twitter.RequestInterval,
	}, cooldown, logger.With().Str("component", "twitterapi").Logger())

	service := ingestusecase.NewService(source, repoAdapter, repoAdapter, repoAdapter,
		logger.With().Str("component", "ingest").Logger(), cfg.Ingest.ReplyWorkers)

	worker := &jobWorker{
		log:        logger,
		cfg:        cfg,
		queue:      ingestQueue,
		service:    service,
		runTimeout: cfg.Ingest.RunTimeout,
	}

	logger.Info().Msg("ingester: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("ingester: остановлен")
}

const maxDeliveryAttempts = 5

type jobWorker struct {
	log        zerolog.Logger
	cfg        config.AppConfig
	queue      domain.IngestQueue
	service    *ingestusecase.Service
	runTimeout time.Duration
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("ingester: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Int64("hashtag", job.HashtagID).
			Str("endpoint", string(job.Endpoint)).
			Str("cause", string(job.Cause)).
			Int("attempt", job.Attempt).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("ingester: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("ingester: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		if err := w.handleJob(ctx, job, jobLog); err != nil {
			if job.Attempt < maxDeliveryAttempts {
				jobLog.Warn().Err(err).Msg("ingester: задача завершилась ошибкой, повторим позже")
				if ackErr := ack(false); ackErr != nil {
					jobLog.Error().Err(ackErr).Msg("ingester: не удалось вернуть задачу в очередь")
				}
				continue
			}
			jobLog.Error().Err(err).Msg("ingester: достигнут предел попыток, задача отброшена")
		}

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("ingester: не удалось подтвердить задачу")
		}
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job domain.IngestJob, jobLog zerolog.Logger) error {
	if _, err := w.cfg.BearerFor(job.Endpoint); err != nil {
		// Без токена повторять бессмысленно: задача отбрасывается.
		jobLog.Error().Err(err).Msg("ingester: задача для класса без токена")
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	report, err := w.service.Run(runCtx, job)
	if err != nil {
		return fmt.Errorf("прогон: %w", err)
	}
	jobLog.Info().
		Int("pages", report.Pages).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Int("replies", report.Replies).
		Msg("ingester: задача выполнена")
	return nil
}
