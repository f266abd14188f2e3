package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vkuzn/apigw/internal/observability"
	"github.com/vkuzn/apigw/internal/ratelimit"
)

// RateLimitStage admits or rejects requests before the terminal handler,
// keyed by client address. A limiter store error fails open so a degraded
// store does not take the gateway down with it.
type RateLimitStage struct {
	limiter ratelimit.Limiter
	logger  observability.Logger
}

// NewRateLimitStage creates a rate-limit stage over the given limiter.
func NewRateLimitStage(limiter ratelimit.Limiter, logger observability.Logger) *RateLimitStage {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimitStage{limiter: limiter, logger: logger}
}

// Name returns the stage name.
func (s *RateLimitStage) Name() string {
	return "ratelimit"
}

// Pre checks the client's budget.
func (s *RateLimitStage) Pre(ctx context.Context, _ *Request, rctx Context) error {
	key := rctx[KeyClientAddr]
	if key == "" {
		key = "global"
	}

	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("rate limiter unavailable, admitting request",
			observability.String("key", key),
			observability.Error(err),
		)
		return nil
	}
	if !allowed {
		return &StageError{
			Stage:  s.Name(),
			Status: http.StatusTooManyRequests,
			Err:    fmt.Errorf("%w: key %s", ErrRateLimited, key),
		}
	}
	return nil
}

// Post is a no-op.
func (s *RateLimitStage) Post(_ context.Context, _ *Response, _ Context) error {
	return nil
}
