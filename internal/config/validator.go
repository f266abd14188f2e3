package config

import (
	"fmt"
	"net/url"
	"strings"
)

// supportedMethods are the HTTP verbs an endpoint may declare.
var supportedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
}

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed at %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors that would make routing or
// dispatch misbehave. The gateway refuses to start on the first violation.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return &ValidationError{Field: "auth.jwtSecret", Message: "required when auth is enabled"}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return &ValidationError{Field: "rateLimit.requestsPerSecond", Message: "must be positive"}
		}
		switch c.RateLimit.Store {
		case "memory":
		case "redis":
			if c.RateLimit.Redis.Address == "" {
				return &ValidationError{Field: "rateLimit.redis.address", Message: "required for the redis store"}
			}
		default:
			return &ValidationError{Field: "rateLimit.store", Message: fmt.Sprintf("unknown store %q", c.RateLimit.Store)}
		}
	}

	for i, ep := range c.Endpoints {
		if err := validateEndpoint(i, ep); err != nil {
			return err
		}
	}

	return nil
}

func validateEndpoint(idx int, ep Endpoint) error {
	field := func(name string) string {
		return fmt.Sprintf("endpoints[%d].%s", idx, name)
	}

	if ep.Path == "" || !strings.HasPrefix(ep.Path, "/") {
		return &ValidationError{Field: field("path"), Message: "must be non-empty and start with /"}
	}
	if !supportedMethods[ep.Method] {
		return &ValidationError{Field: field("method"), Message: fmt.Sprintf("unsupported method %q", ep.Method)}
	}
	if ep.Protocol != ProtocolREST && ep.Protocol != ProtocolWebSocket {
		return &ValidationError{Field: field("protocol"), Message: fmt.Sprintf("unknown protocol %q", ep.Protocol)}
	}
	if len(ep.Backends) == 0 {
		return &ValidationError{Field: field("backends"), Message: "at least one backend is required"}
	}

	seenGuards := make(map[string]bool, len(ep.Guards))
	for _, guard := range ep.Guards {
		if guard == "" {
			return &ValidationError{Field: field("guards"), Message: "guard names must be non-empty"}
		}
		if seenGuards[guard] {
			return &ValidationError{Field: field("guards"), Message: fmt.Sprintf("duplicate guard %q", guard)}
		}
		seenGuards[guard] = true
	}

	for j, be := range ep.Backends {
		bfield := func(name string) string {
			return fmt.Sprintf("endpoints[%d].backends[%d].%s", idx, j, name)
		}

		u, err := url.Parse(be.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: bfield("url"), Message: fmt.Sprintf("invalid URL %q", be.URL)}
		}
		if !Compatible(ep.Protocol, be.Protocol) {
			return &ValidationError{
				Field:   bfield("protocol"),
				Message: fmt.Sprintf("backend protocol %q is incompatible with endpoint protocol %q", be.Protocol, ep.Protocol),
			}
		}
		if be.Retry != nil {
			if be.Retry.Attempts < 1 {
				return &ValidationError{Field: bfield("retry.attempts"), Message: "must be >= 1"}
			}
			if be.Retry.Backoff < 0 {
				return &ValidationError{Field: bfield("retry.backoff"), Message: "must be >= 0"}
			}
		}
		if cb := be.CircuitBreaker; cb != nil {
			if cb.Threshold < 1 {
				return &ValidationError{Field: bfield("circuitBreaker.threshold"), Message: "must be >= 1"}
			}
			if cb.Window <= 0 {
				return &ValidationError{Field: bfield("circuitBreaker.window"), Message: "must be positive"}
			}
			if cb.MinRequests < 1 {
				return &ValidationError{Field: bfield("circuitBreaker.minRequests"), Message: "must be >= 1"}
			}
		}
	}

	return nil
}
