package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzn/apigw/internal/config"
)

type stubHandler struct {
	name string
}

func (h *stubHandler) Dispatch(_ context.Context, _ any) (any, error) {
	return h.name, nil
}

func restEndpoint(method, path string) config.Endpoint {
	return config.Endpoint{
		Path:     path,
		Method:   method,
		Protocol: config.ProtocolREST,
	}
}

func TestRouter_Resolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(restEndpoint("GET", "/users/:id"), &stubHandler{name: "get-user"}))
	require.NoError(t, r.Register(restEndpoint("POST", "/users"), &stubHandler{name: "create-user"}))
	require.NoError(t, r.Register(restEndpoint("GET", "/files/*"), &stubHandler{name: "files"}))

	tests := []struct {
		name       string
		protocol   string
		method     string
		path       string
		wantRoute  string
		wantParams map[string]string
		wantErr    error
	}{
		{
			name:       "parameterized match",
			protocol:   "rest",
			method:     "GET",
			path:       "/users/42",
			wantRoute:  "/users/:id",
			wantParams: map[string]string{"id": "42"},
		},
		{
			name:     "versioned path without api route",
			protocol: "rest",
			method:   "GET",
			path:     "/api/v1/users/42",
			wantErr:  ErrNotFound,
		},
		{
			name:       "trailing slash resolves",
			protocol:   "rest",
			method:     "GET",
			path:       "/users/42/",
			wantRoute:  "/users/:id",
			wantParams: map[string]string{"id": "42"},
		},
		{
			name:       "wildcard match",
			protocol:   "rest",
			method:     "GET",
			path:       "/files/a/b/c",
			wantRoute:  "/files/*",
			wantParams: map[string]string{},
		},
		{
			name:     "unknown path",
			protocol: "rest",
			method:   "GET",
			path:     "/orders",
			wantErr:  ErrNotFound,
		},
		{
			name:     "known path wrong method",
			protocol: "rest",
			method:   "DELETE",
			path:     "/users/42",
			wantErr:  ErrMethodNotAllowed,
		},
		{
			name:     "unknown protocol tag",
			protocol: "gopher",
			method:   "GET",
			path:     "/users/42",
			wantErr:  ErrProtocolMismatch,
		},
		{
			name:     "protocol with no routes",
			protocol: "websocket",
			method:   "GET",
			path:     "/users/42",
			wantErr:  ErrProtocolMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, params, err := r.Resolve(tt.protocol, tt.method, tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, route)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, route.Template())
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestRouter_VersionedAlias(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(restEndpoint("GET", "/api/users/:id"), &stubHandler{name: "get-user"}))

	for _, path := range []string{"/api/users/42", "/api/v1/users/42", "/api/v1/users/42/"} {
		route, params, err := r.Resolve("rest", "GET", path)
		require.NoError(t, err, "path %q", path)
		assert.Equal(t, "/api/users/:id", route.Template())
		assert.Equal(t, map[string]string{"id": "42"}, params)
	}
}

func TestRouter_RegistrationOrderWins(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(restEndpoint("GET", "/users/active"), &stubHandler{name: "active"}))
	require.NoError(t, r.Register(restEndpoint("GET", "/users/:id"), &stubHandler{name: "by-id"}))

	route, params, err := r.Resolve("rest", "GET", "/users/active")
	require.NoError(t, err)
	assert.Equal(t, "/users/active", route.Template())
	assert.Empty(t, params)

	route, params, err = r.Resolve("rest", "GET", "/users/42")
	require.NoError(t, err)
	assert.Equal(t, "/users/:id", route.Template())
	assert.Equal(t, map[string]string{"id": "42"}, params)
}

func TestRouter_Routes(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(restEndpoint("GET", "/users/:id"), &stubHandler{}))
	require.NoError(t, r.Register(restEndpoint("POST", "/users"), &stubHandler{}))

	routes := r.Routes(config.ProtocolREST)
	require.Len(t, routes, 2)
	assert.Equal(t, "/users/:id", routes[0].Template())
	assert.Equal(t, "/users", routes[1].Template())

	// The returned slice is a copy; mutating it does not affect the table.
	routes[0] = nil
	assert.NotNil(t, r.Routes(config.ProtocolREST)[0])

	assert.Empty(t, r.Routes(config.ProtocolWebSocket))
}

func TestRouter_RegisterErrors(t *testing.T) {
	r := New()

	err := r.Register(restEndpoint("GET", "/users/:"), &stubHandler{})
	assert.Error(t, err)

	err = r.Register(restEndpoint("GET", "/users"), nil)
	assert.Error(t, err)
}
