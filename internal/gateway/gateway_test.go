package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/observability"
)

func TestNew_FailsFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name: "invalid path template",
			mutate: func(cfg *config.Config) {
				cfg.Endpoints[0].Path = "/users/:id/orders/:id"
			},
		},
		{
			name: "no backends",
			mutate: func(cfg *config.Config) {
				cfg.Endpoints[0].Backends = nil
			},
		},
		{
			name: "unknown rate limit store",
			mutate: func(cfg *config.Config) {
				cfg.RateLimit = config.RateLimitConfig{Enabled: true, Store: "bogus"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gatewayConfig("http://127.0.0.1:1")
			tt.mutate(cfg)

			_, err := New(cfg, WithLogger(observability.NopLogger()))
			assert.Error(t, err)
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestGateway_Lifecycle(t *testing.T) {
	cfg := gatewayConfig("http://127.0.0.1:1")
	cfg.Server.Port = 0

	g, err := New(cfg, WithLogger(observability.NopLogger()))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, g.State())

	ctx := context.Background()
	require.NoError(t, g.Start(ctx))
	assert.Equal(t, StateRunning, g.State())

	// A second start is rejected.
	assert.Error(t, g.Start(ctx))

	require.NoError(t, g.Stop(ctx))
	assert.Equal(t, StateStopped, g.State())

	// A second stop is rejected.
	assert.Error(t, g.Stop(ctx))
}

func TestGateway_WebSocketListenerOnlyWhenConfigured(t *testing.T) {
	cfg := gatewayConfig("http://127.0.0.1:1")
	g, err := New(cfg, WithLogger(observability.NopLogger()))
	require.NoError(t, err)
	assert.Nil(t, g.wsListener)

	cfg = gatewayConfig("http://127.0.0.1:1")
	cfg.Endpoints = append(cfg.Endpoints, config.Endpoint{
		Path:     "/stream/:channel",
		Method:   "GET",
		Protocol: config.ProtocolWebSocket,
		Backends: []config.Backend{{URL: "http://127.0.0.1:1", Protocol: config.BackendWebSocket}},
	})
	g, err = New(cfg, WithLogger(observability.NopLogger()))
	require.NoError(t, err)
	assert.NotNil(t, g.wsListener)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(42).String())
}
