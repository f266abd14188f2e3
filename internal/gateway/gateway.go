// Package gateway assembles the router, pipeline, and dispatchers into a
// running process with one listener per protocol family.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/dispatch"
	"github.com/vkuzn/apigw/internal/observability"
	"github.com/vkuzn/apigw/internal/pipeline"
	"github.com/vkuzn/apigw/internal/ratelimit"
	"github.com/vkuzn/apigw/internal/router"
)

// State represents the gateway lifecycle state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// endpoint bundles one registered endpoint's chain and dispatcher. It is
// the handler bound into the route table.
type endpoint struct {
	descriptor config.Endpoint
	chain      *pipeline.Chain
	dispatcher *dispatch.Dispatcher
}

// Dispatch forwards the payload through the endpoint's dispatcher.
func (e *endpoint) Dispatch(ctx context.Context, payload any) (any, error) {
	return e.dispatcher.Dispatch(ctx, payload)
}

// Gateway is the assembled process.
type Gateway struct {
	config  *config.Config
	logger  observability.Logger
	router  *router.Router
	limiter ratelimit.Limiter

	httpListener    *Listener
	wsListener      *Listener
	metricsListener *Listener

	state           atomic.Int32
	startTime       time.Time
	shutdownTimeout time.Duration
	httpClient      *http.Client
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client shared by all dispatchers.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// New assembles a gateway from validated configuration. Any registration
// failure aborts construction; nothing is partially started.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		router:          router.New(),
		shutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		httpClient:      dispatch.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(cfg.RateLimit, g.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build rate limiter: %w", err)
		}
		g.limiter = limiter
	}

	for _, ep := range cfg.Endpoints {
		if err := g.register(ep); err != nil {
			return nil, err
		}
	}

	g.buildListeners()
	g.state.Store(int32(StateStopped))

	return g, nil
}

// register builds the endpoint's chain and dispatcher and binds them into
// the route table.
func (g *Gateway) register(ep config.Endpoint) error {
	dispatcher, err := dispatch.New(ep,
		dispatch.WithLogger(g.logger),
		dispatch.WithHTTPClient(g.httpClient),
	)
	if err != nil {
		return fmt.Errorf("failed to build dispatcher for %s %s: %w", ep.Method, ep.Path, err)
	}

	handler := &endpoint{
		descriptor: ep,
		chain:      g.buildChain(ep),
		dispatcher: dispatcher,
	}

	if err := g.router.Register(ep, handler); err != nil {
		return fmt.Errorf("failed to register %s %s: %w", ep.Method, ep.Path, err)
	}

	g.logger.Info("endpoint registered",
		observability.String("method", ep.Method),
		observability.String("path", ep.Path),
		observability.String("protocol", string(ep.Protocol)),
		observability.Int("backends", len(ep.Backends)),
	)
	return nil
}

// buildChain assembles the endpoint's stages in the canonical order:
// metrics, tracing, auth, rate limit. Disabled features are left out
// entirely rather than stubbed.
func (g *Gateway) buildChain(ep config.Endpoint) *pipeline.Chain {
	var stages []pipeline.Stage
	if g.config.Metrics.Enabled {
		stages = append(stages, pipeline.NewMetricsStage())
	}
	if g.config.Tracing.Enabled {
		stages = append(stages, pipeline.NewLoggingStage(g.logger))
	}
	if g.config.Auth.Enabled {
		stages = append(stages, pipeline.NewAuthStage(g.config.Auth, ep.AuthRequired, g.logger))
	}
	if g.config.RateLimit.Enabled {
		stages = append(stages, pipeline.NewRateLimitStage(g.limiter, g.logger))
	}
	return pipeline.NewChain(g.logger, stages...)
}

// buildListeners creates one listener per protocol family with at least
// one registered route, plus the metrics listener when enabled. The HTTP
// listener always exists because it serves the health probe.
func (g *Gateway) buildListeners() {
	host := g.config.Server.Host

	g.httpListener = NewListener(
		"http",
		fmt.Sprintf("%s:%d", host, g.config.Server.Port),
		newHTTPHandler(g.router, g.config.Server.MaxRequestBytes, g.logger),
		WithListenerLogger(g.logger),
	)

	if g.config.HasProtocol(config.ProtocolWebSocket) {
		wsPort := g.config.Server.WSPort
		if wsPort == 0 {
			wsPort = g.config.Server.Port + 1
		}
		g.wsListener = NewListener(
			"websocket",
			fmt.Sprintf("%s:%d", host, wsPort),
			newWebSocketHandler(g.router, g.logger),
			WithListenerLogger(g.logger),
		)
	}

	if g.config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(g.config.Metrics.Path, observability.MetricsHandler())
		g.metricsListener = NewListener(
			"metrics",
			fmt.Sprintf("%s:%d", host, g.config.Metrics.Port),
			mux,
			WithListenerLogger(g.logger),
		)
	}
}

// Start starts every listener. A listener that fails to bind aborts
// startup; failures after startup are logged by the listener itself and
// do not take down the process.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("gateway is not in stopped state")
	}

	g.startTime = time.Now()
	g.logger.Info("starting gateway",
		observability.Int("endpoints", len(g.config.Endpoints)),
	)

	for _, l := range g.listeners() {
		if err := l.Start(ctx); err != nil {
			g.state.Store(int32(StateStopped))
			g.stopListeners(ctx)
			return err
		}
	}

	g.state.Store(int32(StateRunning))
	g.logger.Info("gateway started")
	return nil
}

// Stop gracefully shuts the gateway down within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("gateway is not running")
	}

	g.logger.Info("stopping gateway")

	ctx, cancel := context.WithTimeout(ctx, g.shutdownTimeout)
	defer cancel()

	err := g.stopListeners(ctx)

	if g.limiter != nil {
		if closeErr := g.limiter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped",
		observability.Duration("uptime", time.Since(g.startTime)),
	)
	return err
}

// State returns the gateway lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Router returns the gateway's route table.
func (g *Gateway) Router() *router.Router {
	return g.router
}

func (g *Gateway) listeners() []*Listener {
	ls := []*Listener{g.httpListener}
	if g.wsListener != nil {
		ls = append(ls, g.wsListener)
	}
	if g.metricsListener != nil {
		ls = append(ls, g.metricsListener)
	}
	return ls
}

func (g *Gateway) stopListeners(ctx context.Context) error {
	var err error
	for _, l := range g.listeners() {
		if stopErr := l.Stop(ctx); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}
