// Package ratelimit provides admission control for the rate-limit pipeline
// stage. Two limiter implementations are available: an in-process token
// bucket and a Redis-backed fixed window for multi-instance deployments.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/observability"
)

// Limiter decides whether a request identified by key is admitted.
type Limiter interface {
	// Allow reports whether one request for the given key is admitted.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases limiter resources.
	Close() error
}

// New builds a limiter from configuration. The config is assumed validated;
// an unknown store is still rejected rather than silently admitted.
func New(cfg config.RateLimitConfig, logger observability.Logger) (Limiter, error) {
	switch cfg.Store {
	case "memory":
		return NewTokenBucket(cfg.RequestsPerSecond, cfg.Burst, logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limit := int(cfg.RequestsPerSecond * cfg.Window.Duration().Seconds())
		if limit < 1 {
			limit = 1
		}
		return NewFixedWindow(client, limit, cfg.Window.Duration(), logger), nil
	default:
		return nil, fmt.Errorf("unknown rate limit store: %q", cfg.Store)
	}
}

// keyTTL is how long idle per-key state is retained before cleanup.
const keyTTL = 10 * time.Minute
