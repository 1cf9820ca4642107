package twitterapi

import (
	"context"
	"sync"
	"time"

	"hashtag-ingest/internal/domain"
)

var _ domain.CooldownGate = (*MemoryCooldown)(nil)

// MemoryCooldown — гейт паузы в пределах одного процесса.
// Используется, когда общий Redis не сконфигурирован.
type MemoryCooldown struct {
	mu    sync.Mutex
	until time.Time
}

// NewMemoryCooldown создаёт гейт.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{}
}

// Trip взводит паузу на d. Более длинная пауза побеждает.
func (c *MemoryCooldown) Trip(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(d)
	if deadline.After(c.until) {
		c.until = deadline
	}
	return nil
}

// Wait блокирует вызывающего до окончания паузы.
func (c *MemoryCooldown) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		wait := time.Until(c.until)
		c.mu.Unlock()
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
