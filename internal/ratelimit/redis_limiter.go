package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuzn/apigw/internal/observability"
)

// FixedWindow is a Redis-backed fixed-window limiter. All gateway instances
// sharing the Redis see the same counters, so the limit is enforced across
// the fleet rather than per process.
type FixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger observability.Logger
}

// NewFixedWindow creates a Redis fixed-window limiter.
func NewFixedWindow(client *redis.Client, limit int, window time.Duration, logger observability.Logger) *FixedWindow {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &FixedWindow{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow implements Limiter. The counter key embeds the window start so a new
// window begins with a fresh counter; the key expires after two windows.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().UnixNano() / int64(fw.window)
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	pipe := fw.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, 2*fw.window)

	if _, err := pipe.Exec(ctx); err != nil {
		// Redis being down must not take the gateway down with it:
		// fail open and let the request through.
		fw.logger.Error("rate limit store unavailable, admitting request",
			observability.Error(err),
		)
		recordStoreError()
		return true, nil
	}

	allowed := incr.Val() <= int64(fw.limit)
	recordDecision("redis", allowed)
	return allowed, nil
}

// Close implements Limiter.
func (fw *FixedWindow) Close() error {
	return fw.client.Close()
}
