package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"hashtag-ingest/internal/domain"
)

var _ domain.CooldownGate = (*RedisCooldown)(nil)

const pollStep = 500 * time.Millisecond

// RedisCooldown — общий «стоп-кран» лимита запросов на базе Redis.
// Ключ с TTL видят все процессы, поэтому пауза после 429 у одного
// воркера соблюдается остальными.
type RedisCooldown struct {
	client *redis.Client
	key    string
}

// NewRedisCooldown создаёт гейт по указанному ключу.
func NewRedisCooldown(client *redis.Client, key string) *RedisCooldown {
	return &RedisCooldown{client: client, key: key}
}

// Trip взводит паузу на d. Более длинная из двух пауза побеждает.
func (c *RedisCooldown) Trip(ctx context.Context, d time.Duration) error {
	current, err := c.client.PTTL(ctx, c.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if current >= d {
		return nil
	}
	return c.client.Set(ctx, c.key, "1", d).Err()
}

// Wait блокирует вызывающего, пока пауза не истечёт.
func (c *RedisCooldown) Wait(ctx context.Context) error {
	for {
		ttl, err := c.client.PTTL(ctx, c.key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if ttl <= 0 {
			return nil
		}
		step := ttl
		if step > pollStep {
			step = pollStep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
}
