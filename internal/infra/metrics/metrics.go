package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	IngestPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pages_total",
		Help: "Обработанные страницы поискового API",
	}, []string{"endpoint"})

	IngestTweetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_tweets_total",
		Help: "Нормализованные записи по итогам сбора",
	}, []string{"endpoint"})

	IngestSkippedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_skipped_records_total",
		Help: "Записи, пропущенные при нормализации",
	})

	IngestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Ошибки прогонов сбора",
	})

	RateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_waits_total",
		Help: "Паузы после 429 от поискового API",
	})

	ReplyExpansionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reply_expansion_errors_total",
		Help: "Ошибки разворачивания веток ответов",
	})

	VolumeBucketsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "volume_buckets_total",
		Help: "Сохранённые агрегаты объёмов",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		IngestPagesTotal,
		IngestTweetsTotal,
		IngestSkippedRecords,
		IngestErrors,
		RateLimitWaits,
		ReplyExpansionErrors,
		VolumeBucketsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
