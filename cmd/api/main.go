package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"hashtag-ingest/internal/adapters/repo"
	"hashtag-ingest/internal/adapters/twitterapi"
	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/config"
	"hashtag-ingest/internal/infra/db"
	httpinfra "hashtag-ingest/internal/infra/http"
	applog "hashtag-ingest/internal/infra/log"
	"hashtag-ingest/internal/infra/metrics"
	"hashtag-ingest/internal/infra/queue"
	sourcesusecase "hashtag-ingest/internal/usecase/sources"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("api: не указан адрес БД (PG_DSN)")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	sourcesService := sourcesusecase.NewService(repoAdapter, logger.With().Str("component", "sources").Logger())

	var ingestQueue domain.IngestQueue
	switch {
	case cfg.RabbitURL != "":
		rabbitQueue, err := queue.NewRabbitIngestQueue(cfg.RabbitURL, cfg.Queues.Ingest)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		ingestQueue = rabbitQueue
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		ingestQueue = queue.NewRedisIngestQueue(redisClient, cfg.Queues.Ingest)
	}

	// Живой срез объёмов доступен, только если задан хоть один токен.
	var volumes volumeSource
	if cfg.RequireBearer() == nil {
		volumes = twitterapi.NewClient(twitterapi.Config{
			BaseURL:           cfg.Twitter.BaseURL,
			BearerStandard:    cfg.Twitter.BearerToken,
			BearerAcademic:    cfg.Twitter.AcademicBearerToken,
			MaxResults:        cfg.Twitter.MaxResults,
			RateLimitCooldown: cfg.Twitter.RateLimitCooldown,
			RateLimitRetries:  cfg.Twitter.RateLimitRetries,
			RequestInterval:   cfg.Twitter.RequestInterval,
		}, nil, logger.With().Str("component", "twitterapi").Logger())
	}

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handlers := &apiHandlers{sources: sourcesService, hashtags: repoAdapter, queue: ingestQueue, volumes: volumes}
	handlers.register(server.Router)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
	logger.Info().Msg("api: остановлен")
}

// volumeSource — суммарные объёмы по набору тегов одним запросом.
type volumeSource interface {
	FetchCombinedVolumes(ctx context.Context, endpoint domain.EndpointClass, names []string, window *domain.TimeWindow, includeRetweets bool) ([]domain.VolumeBucket, error)
}

type apiHandlers struct {
	sources  *sourcesusecase.Service
	hashtags domain.HashtagRepo
	queue    domain.IngestQueue
	volumes  volumeSource
}

func (h *apiHandlers) register(r chi.Router) {
	r.Route("/api/v1/hashtags", func(r chi.Router) {
		r.Post("/", h.createHashtag)
		r.Get("/", h.listHashtags)
		r.Put("/{id}/enable", h.setEnabled(true))
		r.Put("/{id}/disable", h.setEnabled(false))
		r.Post("/{id}/ingest", h.enqueueIngest)
	})
	r.Get("/api/v1/volumes", h.combinedVolumes)
}

type hashtagResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	Enabled     bool   `json:"enabled"`
	LastTweetID string `json:"last_tweet_id,omitempty"`
}

func toHashtagResponse(tag domain.Hashtag) hashtagResponse {
	return hashtagResponse{
		ID:          tag.ID,
		Name:        tag.Name,
		Endpoint:    string(tag.Endpoint),
		Enabled:     tag.Enabled,
		LastTweetID: tag.LastTweetID,
	}
}

func (h *apiHandlers) createHashtag(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	endpoint, err := parseEndpoint(req.Endpoint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := h.sources.Add(r.Context(), req.Name, endpoint)
	if errors.Is(err, sourcesusecase.ErrBadName) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toHashtagResponse(tag))
}

func (h *apiHandlers) listHashtags(w http.ResponseWriter, r *http.Request) {
	endpoint, err := parseEndpoint(r.URL.Query().Get("endpoint"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tags, err := h.sources.List(r.Context(), endpoint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]hashtagResponse, 0, len(tags))
	for _, tag := range tags {
		resp = append(resp, toHashtagResponse(tag))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandlers) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный идентификатор")
			return
		}
		if enabled {
			err = h.sources.Enable(r.Context(), id)
		} else {
			err = h.sources.Disable(r.Context(), id)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *apiHandlers) enqueueIngest(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "очередь не настроена")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "некорректный идентификатор")
		return
	}
	tag, err := h.hashtags.GetHashtag(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	defer r.Body.Close()
	var req struct {
		WindowStart     *time.Time `json:"window_start"`
		WindowEnd       *time.Time `json:"window_end"`
		ExpandReplies   bool       `json:"expand_replies"`
		IncludeRetweets bool       `json:"include_retweets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	job := domain.IngestJob{
		ID:              uuid.NewString(),
		HashtagID:       tag.ID,
		Endpoint:        tag.Endpoint,
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		ExpandReplies:   req.ExpandReplies,
		IncludeRetweets: req.IncludeRetweets,
		RequestedAt:     time.Now().UTC(),
		Cause:           domain.IngestCauseManual,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// combinedVolumes отдаёт живые объёмы по нескольким тегам сразу:
// один OR-запрос к counts-эндпоинту, без записи в хранилище.
func (h *apiHandlers) combinedVolumes(w http.ResponseWriter, r *http.Request) {
	if h.volumes == nil {
		writeError(w, http.StatusServiceUnavailable, "токен API не настроен")
		return
	}
	q := r.URL.Query()
	if q.Get("hashtags") == "" {
		writeError(w, http.StatusBadRequest, "не указаны теги (hashtags)")
		return
	}
	var names []string
	for _, raw := range strings.Split(q.Get("hashtags"), ",") {
		name, err := sourcesusecase.ParseName(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("некорректный тег %q", raw))
			return
		}
		names = append(names, name)
	}
	endpoint, err := parseEndpoint(q.Get("endpoint"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var window *domain.TimeWindow
	if q.Get("start") != "" || q.Get("end") != "" {
		start, err := time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный start")
			return
		}
		end, err := time.Parse(time.RFC3339, q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "некорректный end")
			return
		}
		window = &domain.TimeWindow{Start: start, End: end}
	}

	buckets, err := h.volumes.FetchCombinedVolumes(r.Context(), endpoint, names, window, q.Get("include_retweets") == "true")
	if errors.Is(err, domain.ErrQueryTooLong) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func parseEndpoint(raw string) (domain.EndpointClass, error) {
	switch raw {
	case "", string(domain.EndpointStandard):
		return domain.EndpointStandard, nil
	case string(domain.EndpointAcademic):
		return domain.EndpointAcademic, nil
	default:
		return "", fmt.Errorf("неизвестный класс эндпоинта: %s", raw)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
