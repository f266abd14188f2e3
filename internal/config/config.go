// Package config provides configuration types, loading, and validation for
// the gateway. The dispatch pipeline trusts that a Config it receives has
// already passed Validate.
package config

import (
	"fmt"
	"strings"
	"time"
)

// GatewayProtocol identifies the protocol family an endpoint is served on.
type GatewayProtocol string

const (
	// ProtocolREST serves the endpoint over plain HTTP.
	ProtocolREST GatewayProtocol = "rest"

	// ProtocolWebSocket serves the endpoint over a WebSocket connection.
	ProtocolWebSocket GatewayProtocol = "websocket"
)

// ParseGatewayProtocol parses a protocol tag into a GatewayProtocol.
func ParseGatewayProtocol(s string) (GatewayProtocol, error) {
	switch strings.ToLower(s) {
	case "rest":
		return ProtocolREST, nil
	case "websocket":
		return ProtocolWebSocket, nil
	default:
		return "", fmt.Errorf("unknown gateway protocol: %q", s)
	}
}

// String returns the protocol tag.
func (p GatewayProtocol) String() string {
	return string(p)
}

// BackendProtocol identifies the protocol spoken by a backend target.
type BackendProtocol string

const (
	// BackendREST is a plain HTTP backend.
	BackendREST BackendProtocol = "rest"

	// BackendGRPC is a gRPC backend reachable over its HTTP bridge.
	BackendGRPC BackendProtocol = "grpc"

	// BackendWebSocket is a WebSocket-only backend.
	BackendWebSocket BackendProtocol = "websocket"
)

// Compatible reports whether a backend protocol may serve an endpoint of the
// given gateway protocol. A REST endpoint must not target a WebSocket-only
// backend and vice versa.
func Compatible(gw GatewayProtocol, be BackendProtocol) bool {
	switch gw {
	case ProtocolREST:
		return be == BackendREST || be == BackendGRPC
	case ProtocolWebSocket:
		return be == BackendWebSocket
	default:
		return false
	}
}

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Endpoints []Endpoint      `yaml:"endpoints"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	WSPort          int      `yaml:"wsPort"`
	Timeout         Duration `yaml:"timeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MaxRequestBytes int64    `yaml:"maxRequestBytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds the metrics feature flag and exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// TracingConfig holds the tracing stage feature flag.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AuthConfig holds the auth stage settings.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// RateLimitConfig holds the rate-limit stage settings.
type RateLimitConfig struct {
	Enabled           bool        `yaml:"enabled"`
	Store             string      `yaml:"store"` // memory, redis
	RequestsPerSecond float64     `yaml:"requestsPerSecond"`
	Burst             int         `yaml:"burst"`
	Window            Duration    `yaml:"window"`
	Redis             RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the Redis rate-limit store.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Endpoint declares one gateway-facing route and its candidate backends.
// Immutable after registration.
type Endpoint struct {
	Path         string          `yaml:"path"`
	Method       string          `yaml:"method"`
	Protocol     GatewayProtocol `yaml:"protocol"`
	Timeout      Duration        `yaml:"timeout"`
	CacheTTL     Duration        `yaml:"cacheTTL"`
	AuthRequired bool            `yaml:"authRequired"`
	Guards       []string        `yaml:"guards"`
	Backends     []Backend       `yaml:"backends"`
}

// Backend declares one concrete upstream a dispatcher may call.
type Backend struct {
	URL            string              `yaml:"url"`
	Method         string              `yaml:"method"`
	Timeout        Duration            `yaml:"timeout"`
	Protocol       BackendProtocol     `yaml:"protocol"`
	Retry          *RetryPolicy        `yaml:"retry"`
	CircuitBreaker *CircuitBreakerSpec `yaml:"circuitBreaker"`
}

// RetryPolicy bounds retry passes for a dispatcher.
type RetryPolicy struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
}

// CircuitBreakerSpec configures the per-target circuit breaker.
type CircuitBreakerSpec struct {
	Threshold   int      `yaml:"threshold"`
	Window      Duration `yaml:"window"`
	MinRequests int      `yaml:"minRequests"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultHTTPPort        = 8080
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultServerTimeout   = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultBackendTimeout  = 30 * time.Second
	DefaultMaxRequestBytes = 10 << 20
)

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultHTTPPort
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = Duration(DefaultServerTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Server.MaxRequestBytes == 0 {
		c.Server.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = "memory"
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Second)
	}

	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Method == "" {
			ep.Method = "GET"
		}
		ep.Method = strings.ToUpper(ep.Method)
		if ep.Protocol == "" {
			ep.Protocol = ProtocolREST
		}
		for j := range ep.Backends {
			be := &ep.Backends[j]
			if be.Method == "" {
				be.Method = "GET"
			}
			be.Method = strings.ToUpper(be.Method)
			if be.Protocol == "" {
				be.Protocol = BackendREST
			}
			if be.Timeout == 0 {
				be.Timeout = Duration(DefaultBackendTimeout)
			}
		}
	}
}

// HasProtocol reports whether at least one endpoint is declared for the
// given protocol family.
func (c *Config) HasProtocol(p GatewayProtocol) bool {
	for _, ep := range c.Endpoints {
		if ep.Protocol == p {
			return true
		}
	}
	return false
}
