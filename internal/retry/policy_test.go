package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzn/apigw/internal/config"
)

func TestFromConfig(t *testing.T) {
	assert.Equal(t, Policy{Attempts: 1}, FromConfig(nil))

	p := FromConfig(&config.RetryPolicy{
		Attempts: 3,
		Backoff:  config.Duration(100 * time.Millisecond),
	})
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 100*time.Millisecond, p.Backoff)

	// Invalid values are clamped rather than propagated.
	p = FromConfig(&config.RetryPolicy{Attempts: 0, Backoff: config.Duration(-1)})
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, time.Duration(0), p.Backoff)
}

func TestPolicy_Wait(t *testing.T) {
	p := Policy{Attempts: 2, Backoff: 20 * time.Millisecond}

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPolicy_WaitCancelled(t *testing.T) {
	p := Policy{Attempts: 2, Backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_WaitZeroBackoff(t *testing.T) {
	p := Policy{Attempts: 1}
	assert.NoError(t, p.Wait(context.Background()))
}
