// Package dispatch forwards requests to an endpoint's backends with
// round-robin selection, per-target circuit breaking, and bounded retry
// passes.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vkuzn/apigw/internal/circuitbreaker"
	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/observability"
	"github.com/vkuzn/apigw/internal/retry"
)

// Target is one upstream candidate with its own circuit breaker.
type Target struct {
	URL     string
	Method  string
	Timeout time.Duration
	breaker *circuitbreaker.Breaker
}

// Breaker exposes the target's circuit breaker.
func (t *Target) Breaker() *circuitbreaker.Breaker {
	return t.breaker
}

// Dispatcher fans one endpoint's requests out over its backends. The
// round-robin cursor is shared across invocations so concurrent requests
// start from different targets; it advances exactly once per Dispatch, and
// every retry pass of that dispatch restarts from the same start position.
type Dispatcher struct {
	endpoint string
	targets  []*Target
	policy   retry.Policy
	cursor   atomic.Uint64
	client   *http.Client
	logger   observability.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client shared by all targets.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// NewHTTPClient builds the pooled client dispatchers share. Per-target
// timeouts come from request contexts, so the client itself has none.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// New builds a dispatcher for the endpoint's backends.
func New(ep config.Endpoint, opts ...Option) (*Dispatcher, error) {
	if len(ep.Backends) == 0 {
		return nil, fmt.Errorf("endpoint %s %s has no backends", ep.Method, ep.Path)
	}

	d := &Dispatcher{
		endpoint: ep.Path,
		policy:   retry.Default(),
		client:   NewHTTPClient(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	for i, be := range ep.Backends {
		if i == 0 && be.Retry != nil {
			d.policy = retry.FromConfig(be.Retry)
		}

		method := be.Method
		if method == "" {
			method = ep.Method
		}
		timeout := be.Timeout.Duration()
		if timeout <= 0 {
			timeout = config.DefaultBackendTimeout
		}

		breakerCfg := circuitbreaker.DefaultConfig()
		if be.CircuitBreaker != nil {
			breakerCfg = circuitbreaker.Config{
				Threshold:   be.CircuitBreaker.Threshold,
				Window:      be.CircuitBreaker.Window.Duration(),
				MinRequests: be.CircuitBreaker.MinRequests,
			}
		}

		d.targets = append(d.targets, &Target{
			URL:     be.URL,
			Method:  method,
			Timeout: timeout,
			breaker: circuitbreaker.New(be.URL, breakerCfg, d.logger),
		})
	}

	return d, nil
}

// Endpoint returns the path template this dispatcher serves.
func (d *Dispatcher) Endpoint() string {
	return d.endpoint
}

// Targets returns the dispatcher's targets in rotation order.
func (d *Dispatcher) Targets() []*Target {
	return d.targets
}

// Dispatch forwards the payload to the first healthy backend and returns
// its decoded JSON response. Targets are tried strictly sequentially; each
// retry pass walks the full rotation, with a constant backoff between
// passes. Targets with an open breaker are skipped without a network call.
func (d *Dispatcher) Dispatch(ctx context.Context, payload any) (any, error) {
	start := d.cursor.Add(1) - 1

	var lastErr error
	for pass := 0; pass < d.policy.Attempts; pass++ {
		if pass > 0 {
			if err := d.policy.Wait(ctx); err != nil {
				return nil, err
			}
		}

		for i := 0; i < len(d.targets); i++ {
			target := d.targets[(start+uint64(i))%uint64(len(d.targets))]

			if !target.breaker.Allow() {
				recordAttempt(d.endpoint, target.URL, "breaker_open")
				continue
			}

			body, err := d.call(ctx, target, payload)
			if err != nil {
				target.breaker.RecordFailure()
				recordAttempt(d.endpoint, target.URL, attemptOutcome(err))
				d.logger.Warn("backend attempt failed",
					observability.String("endpoint", d.endpoint),
					observability.String("backend", target.URL),
					observability.Int("pass", pass+1),
					observability.Error(err),
				)
				lastErr = err
				continue
			}

			target.breaker.RecordSuccess()
			recordAttempt(d.endpoint, target.URL, "success")
			recordDispatch(d.endpoint, "success")
			return body, nil
		}
	}

	if lastErr == nil {
		// Every target was skipped by an open breaker.
		lastErr = circuitbreaker.ErrCircuitOpen
	}

	recordDispatch(d.endpoint, "exhausted")
	return nil, &ExhaustedError{
		Endpoint: d.endpoint,
		Passes:   d.policy.Attempts,
		Cause:    lastErr,
	}
}

// call performs one backend attempt under the target's timeout.
func (d *Dispatcher) call(ctx context.Context, target *Target, payload any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, target.Timeout)
	defer cancel()

	var reqBody io.Reader
	if target.Method != http.MethodGet && payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload for %s: %w", target.URL, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", target.URL, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: target.URL, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil, &StatusError{URL: target.URL, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: target.URL, Timeout: isTimeout(err), Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("backend %s returned invalid JSON: %w", target.URL, err)
	}
	return body, nil
}

// isTimeout reports whether a transport error was a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// attemptOutcome maps an attempt error to its metrics label.
func attemptOutcome(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "status_error"
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout {
			return "timeout"
		}
		return "network_error"
	}
	return "error"
}
