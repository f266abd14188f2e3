package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vkuzn/apigw/internal/observability"
)

// Listener runs one http.Server on one address. It serves in a background
// goroutine; a serve failure after startup is logged and flips the running
// flag but never propagates to the caller.
type Listener struct {
	name    string
	addr    string
	handler http.Handler
	server  *http.Server
	logger  observability.Logger
	running atomic.Bool
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener creates a listener serving handler on addr.
func NewListener(name, addr string, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		name:    name,
		addr:    addr,
		handler: handler,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.name
}

// Addr returns the listener address.
func (l *Listener) Addr() string {
	return l.addr
}

// Start binds the address and begins serving in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener %s is already running", l.name)
	}

	l.server = &http.Server{
		Addr:              l.addr,
		Handler:           l.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	l.running.Store(true)
	l.logger.Info("listener started",
		observability.String("name", l.name),
		observability.String("address", l.addr),
	)

	go l.serve(ln)
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		l.logger.Error("listener error",
			observability.String("name", l.name),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop shuts the listener down gracefully.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.Load() {
		return nil
	}

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener %s: %w", l.name, closeErr)
		}
		return fmt.Errorf("failed to shutdown listener %s gracefully: %w", l.name, err)
	}

	l.running.Store(false)
	l.logger.Info("listener stopped",
		observability.String("name", l.name),
	)
	return nil
}

// IsRunning reports whether the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
