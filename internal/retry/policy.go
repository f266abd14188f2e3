// Package retry provides the retry policy applied between dispatch passes.
package retry

import (
	"context"
	"time"

	"github.com/vkuzn/apigw/internal/config"
)

// Policy bounds how many full passes over a dispatcher's target rotation are
// made and how long to wait between them. Attempts counts passes, not
// individual backend calls: one pass may try every target in rotation.
type Policy struct {
	// Attempts is the total number of passes, including the first.
	Attempts int

	// Backoff is the fixed wait between passes.
	Backoff time.Duration
}

// Default returns the policy used when an endpoint configures none:
// a single pass with no backoff.
func Default() Policy {
	return Policy{Attempts: 1}
}

// FromConfig converts a configured retry policy. A nil config yields the
// default single-pass policy.
func FromConfig(cfg *config.RetryPolicy) Policy {
	if cfg == nil {
		return Default()
	}
	p := Policy{
		Attempts: cfg.Attempts,
		Backoff:  cfg.Backoff.Duration(),
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Wait blocks for the backoff duration or until the context is cancelled.
func (p Policy) Wait(ctx context.Context) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
