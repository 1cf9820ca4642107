package twitterapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hashtag-ingest/internal/domain"
	"hashtag-ingest/internal/infra/metrics"
)

// getPage выполняет один запрос к API с восстановлением после 429.
// 200 — вернуть тело; 429 — взвести общую паузу и повторить тот же
// запрос без изменений, пока не исчерпан потолок повторов; любой
// другой статус — *domain.UpstreamError без повторов.
func (c *Client) getPage(ctx context.Context, rawURL string, params url.Values, bearer, operation, target string) ([]byte, error) {
	attempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := c.cooldown.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("создание запроса: %w", err)
		}
		req.URL.RawQuery = params.Encode()
		req.Header.Set("Authorization", "Bearer "+bearer)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		metrics.ObserveNetworkRequest("twitter_api", operation, target, start, err)
		if err != nil {
			return nil, fmt.Errorf("запрос страницы: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("чтение страницы: %w", err)
			}
			return body, nil
		case http.StatusTooManyRequests:
			_ = resp.Body.Close()
			attempts++
			metrics.RateLimitWaits.Inc()
			if attempts > c.cfg.RateLimitRetries {
				return nil, &domain.RateLimitError{Attempts: attempts - 1}
			}
			c.log.Warn().
				Str("target", target).
				Int("attempt", attempts).
				Dur("cooldown", c.cfg.RateLimitCooldown).
				Msg("twitter: получен 429, пауза перед повтором")
			if err := c.cooldown.Trip(ctx, c.cfg.RateLimitCooldown); err != nil {
				return nil, err
			}
		default:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return nil, &domain.UpstreamError{
				Status: resp.StatusCode,
				Body:   strings.TrimSpace(string(data)),
			}
		}
	}
}

// forEachSearchPage обходит страницы поиска, перенося next_token из
// меты в следующий запрос. Пагинация строго последовательна: токен
// очередной страницы известен только после ответа на предыдущую,
// поэтому распараллелить обход внутри одного запроса нельзя.
func (c *Client) forEachSearchPage(ctx context.Context, rawURL string, params url.Values, bearer, operation, target string, fn func(rawPage) error) error {
	for {
		body, err := c.getPage(ctx, rawURL, params, bearer, operation, target)
		if err != nil {
			return err
		}
		var page rawPage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("разбор страницы: %w", err)
		}
		if err := fn(page); err != nil {
			return err
		}
		if page.Meta.NextToken == "" {
			return nil
		}
		params.Set("next_token", page.Meta.NextToken)
	}
}

// forEachCountsPage — тот же обход для эндпоинта объёмов.
func (c *Client) forEachCountsPage(ctx context.Context, rawURL string, params url.Values, bearer, target string, fn func(rawCountsPage) error) error {
	for {
		body, err := c.getPage(ctx, rawURL, params, bearer, "counts_page", target)
		if err != nil {
			return err
		}
		var page rawCountsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("разбор страницы объёмов: %w", err)
		}
		if err := fn(page); err != nil {
			return err
		}
		if page.Meta.NextToken == "" {
			return nil
		}
		params.Set("next_token", page.Meta.NextToken)
	}
}
