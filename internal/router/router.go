package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vkuzn/apigw/internal/config"
)

// Routing errors surfaced to the caller as 4xx; never retried.
var (
	// ErrNotFound indicates no registered pattern matched the path.
	ErrNotFound = errors.New("route not found")

	// ErrMethodNotAllowed indicates a pattern matched the path but not
	// the request method.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrProtocolMismatch indicates the protocol tag could not be parsed
	// or has no routes registered.
	ErrProtocolMismatch = errors.New("protocol mismatch")
)

// Handler is the terminal a matched route dispatches to.
type Handler interface {
	// Dispatch forwards the decoded JSON payload to a backend and
	// returns its decoded JSON response.
	Dispatch(ctx context.Context, payload any) (any, error)
}

// Route binds a compiled matcher to its endpoint and handler. Created once
// at registration and read-only thereafter.
type Route struct {
	Endpoint config.Endpoint
	Handler  Handler

	matcher *TemplateMatcher
}

// Template returns the route's path template.
func (r *Route) Template() string {
	return r.matcher.Template()
}

// Router holds per-protocol route tables. Resolution scans routes in
// registration order and returns the first match, so overlapping patterns
// must be registered most-specific first; ties are never resolved by
// specificity. Lookups proceed concurrently; registration excludes them.
type Router struct {
	mu     sync.RWMutex
	tables map[config.GatewayProtocol][]*Route
}

// New creates a new router.
func New() *Router {
	return &Router{
		tables: make(map[config.GatewayProtocol][]*Route),
	}
}

// Register compiles the endpoint's path template and appends the route to
// its protocol family's table.
func (r *Router) Register(ep config.Endpoint, handler Handler) error {
	matcher, err := NewTemplateMatcher(ep.Path)
	if err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("route %s %s has no handler", ep.Method, ep.Path)
	}

	route := &Route{
		Endpoint: ep,
		Handler:  handler,
		matcher:  matcher,
	}

	r.mu.Lock()
	r.tables[ep.Protocol] = append(r.tables[ep.Protocol], route)
	r.mu.Unlock()

	return nil
}

// Resolve matches a (protocol, method, path) tuple to a registered route
// and returns the parameters captured from the path.
func (r *Router) Resolve(protocolTag, method, path string) (*Route, map[string]string, error) {
	protocol, err := config.ParseGatewayProtocol(protocolTag)
	if err != nil {
		return nil, nil, ErrProtocolMismatch
	}

	r.mu.RLock()
	routes := r.tables[protocol]
	r.mu.RUnlock()

	if len(routes) == 0 {
		recordResolve(string(protocol), "protocol_mismatch")
		return nil, nil, ErrProtocolMismatch
	}

	normalized := NormalizePath(path)

	pathMatched := false
	for _, route := range routes {
		matched, params := route.matcher.Match(normalized)
		if !matched {
			continue
		}
		if route.Endpoint.Method != method {
			// Another registration may cover this method.
			pathMatched = true
			continue
		}
		recordResolve(string(protocol), "matched")
		return route, params, nil
	}

	if pathMatched {
		recordResolve(string(protocol), "method_not_allowed")
		return nil, nil, ErrMethodNotAllowed
	}

	recordResolve(string(protocol), "not_found")
	return nil, nil, ErrNotFound
}

// Routes returns a copy of the table for the given protocol family.
func (r *Router) Routes(protocol config.GatewayProtocol) []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*Route, len(r.tables[protocol]))
	copy(routes, r.tables[protocol])
	return routes
}
