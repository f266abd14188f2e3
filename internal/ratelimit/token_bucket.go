package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vkuzn/apigw/internal/observability"
)

// TokenBucket is an in-process token bucket limiter with one bucket per key.
// A background goroutine evicts idle buckets so long-running gateways do not
// accumulate state for every client ever seen.
type TokenBucket struct {
	rps    float64
	burst  int
	logger observability.Logger

	mu      sync.Mutex
	buckets map[string]*bucketEntry

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(rps float64, burst int, logger observability.Logger) *TokenBucket {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if burst < 1 {
		burst = 1
	}

	tb := &TokenBucket{
		rps:         rps,
		burst:       burst,
		logger:      logger,
		buckets:     make(map[string]*bucketEntry),
		stopCleanup: make(chan struct{}),
	}

	go tb.cleanupLoop()

	return tb
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	tb.mu.Lock()
	entry, ok := tb.buckets[key]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(rate.Limit(tb.rps), tb.burst)}
		tb.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	tb.mu.Unlock()

	allowed := entry.limiter.Allow()
	recordDecision("memory", allowed)
	return allowed, nil
}

// Close implements Limiter.
func (tb *TokenBucket) Close() error {
	tb.closeOnce.Do(func() {
		close(tb.stopCleanup)
	})
	return nil
}

func (tb *TokenBucket) cleanupLoop() {
	ticker := time.NewTicker(keyTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.evictIdle()
		case <-tb.stopCleanup:
			return
		}
	}
}

func (tb *TokenBucket) evictIdle() {
	cutoff := time.Now().Add(-keyTTL)

	tb.mu.Lock()
	for key, entry := range tb.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(tb.buckets, key)
		}
	}
	tb.mu.Unlock()
}
