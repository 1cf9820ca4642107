package twitterapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hashtag-ingest/internal/domain"
)

// Config — параметры клиента поискового API. Значения передаются
// явно при создании; клиент не читает окружение и не держит
// глобального состояния.
type Config struct {
	BaseURL           string
	BearerStandard    string
	BearerAcademic    string
	MaxResults        int
	RateLimitCooldown time.Duration
	RateLimitRetries  int
	RequestInterval   time.Duration
}

// Client ходит в поисковый API и реализует domain.TweetSource.
// Лимитер и гейт паузы общие на все вызовы клиента: 429 у одного
// обхода притормаживает остальные.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	cooldown   domain.CooldownGate
	log        zerolog.Logger
}

var _ domain.TweetSource = (*Client)(nil)

// NewClient создаёт клиент. Нулевые поля конфига получают значения
// наблюдаемого бэкенда: 100 записей на страницу, пауза 60 секунд,
// потолок в 5 повторов.
func NewClient(cfg Config, cooldown domain.CooldownGate, logger zerolog.Logger) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = time.Minute
	}
	if cfg.RateLimitRetries <= 0 {
		cfg.RateLimitRetries = 5
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = time.Second
	}
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		cooldown:   cooldown,
		log:        logger,
	}
}

func (c *Client) searchURL(endpoint domain.EndpointClass) string {
	if endpoint == domain.EndpointAcademic {
		return c.cfg.BaseURL + "/tweets/search/all"
	}
	return c.cfg.BaseURL + "/tweets/search/recent"
}

func (c *Client) countsURL(endpoint domain.EndpointClass) string {
	if endpoint == domain.EndpointAcademic {
		return c.cfg.BaseURL + "/tweets/counts/all"
	}
	return c.cfg.BaseURL + "/tweets/counts/recent"
}

func (c *Client) bearer(endpoint domain.EndpointClass) string {
	if endpoint == domain.EndpointAcademic {
		return c.cfg.BearerAcademic
	}
	return c.cfg.BearerStandard
}

func (c *Client) searchParams(query string) url.Values {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	params.Set("expansions", strings.Join(expansions, ","))
	params.Set("tweet.fields", strings.Join(tweetFields, ","))
	params.Set("user.fields", strings.Join(userFields, ","))
	params.Set("media.fields", strings.Join(mediaFields, ","))
	return params
}
