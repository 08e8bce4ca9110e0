package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/standhq/stand/internal/config"
)

const keyWebhookProvider = "webhook:ingest:provider:%s"

// WebhookLimiter throttles inbound webhook deliveries per provider.
// Disabled when no Redis address is configured; everything is then
// allowed through.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWebhookLimiter(cfg config.Config) *WebhookLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.WebhookRateLimit <= 0 || cfg.WebhookRateBurst <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.WebhookRateLimit,
		burst:   cfg.WebhookRateBurst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) Allow(ctx context.Context, provider string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyWebhookProvider, strings.ToLower(strings.TrimSpace(provider)))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
