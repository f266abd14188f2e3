package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultLogConfig()},
		{name: "console format", cfg: LogConfig{Level: "debug", Format: "console"}},
		{name: "stderr output", cfg: LogConfig{Level: "warn", Format: "json", Output: "stderr"}},
		{name: "invalid level", cfg: LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := NopLogger()
	child := logger.With(String("component", "test"))
	assert.NotNil(t, child)

	// Logging through the nop logger must not panic.
	child.Info("message", Int("count", 1))
	child.Error("message", Error(assert.AnError))
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))

	logger := NopLogger().WithContext(ctx)
	assert.NotNil(t, logger)
}

func TestGlobalLogger(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogger(nil) })

	SetGlobalLogger(nil)
	assert.NotNil(t, GetGlobalLogger())

	logger := NopLogger()
	SetGlobalLogger(logger)
	assert.Same(t, logger, GetGlobalLogger())
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{status: 200, want: "2xx"},
		{status: 299, want: "2xx"},
		{status: 301, want: "3xx"},
		{status: 404, want: "4xx"},
		{status: 500, want: "5xx"},
		{status: 101, want: "1xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status), "status %d", tt.status)
	}
}
