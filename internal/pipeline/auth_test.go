package pipeline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/observability"
)

const testSecret = "auth-stage-test-secret"

func signToken(t *testing.T, secret, subject, issuer string, expiry time.Duration) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(expiry))
	if issuer != "" {
		builder = builder.Issuer(issuer)
	}

	token, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func authRequest(token string) *Request {
	req := &Request{Method: "GET", Path: "/users/42", Header: http.Header{}}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthStage_ValidToken(t *testing.T) {
	stage := NewAuthStage(config.AuthConfig{JWTSecret: testSecret}, true, observability.NopLogger())

	token := signToken(t, testSecret, "alice", "", time.Minute)
	rctx := Context{}

	err := stage.Pre(context.Background(), authRequest(token), rctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", rctx[KeyAuthSubject])
	assert.Equal(t, token, rctx[KeyAuthToken])
}

func TestAuthStage_MissingToken(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: testSecret}

	t.Run("required rejects", func(t *testing.T) {
		stage := NewAuthStage(cfg, true, observability.NopLogger())
		err := stage.Pre(context.Background(), authRequest(""), Context{})
		assert.ErrorIs(t, err, ErrUnauthorized)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, http.StatusUnauthorized, stageErr.Status)
	})

	t.Run("optional passes through", func(t *testing.T) {
		stage := NewAuthStage(cfg, false, observability.NopLogger())
		rctx := Context{}
		err := stage.Pre(context.Background(), authRequest(""), rctx)
		require.NoError(t, err)
		assert.Empty(t, rctx[KeyAuthSubject])
	})
}

func TestAuthStage_InvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, "some-other-secret", "alice", "", time.Minute)
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, "alice", "", -time.Minute)
			},
		},
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not.a.jwt"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Invalid tokens are rejected even when auth is optional.
			stage := NewAuthStage(config.AuthConfig{JWTSecret: testSecret}, false, observability.NopLogger())
			err := stage.Pre(context.Background(), authRequest(tt.token(t)), Context{})
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestAuthStage_Issuer(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "apigw"}
	stage := NewAuthStage(cfg, true, observability.NopLogger())

	good := signToken(t, testSecret, "alice", "apigw", time.Minute)
	require.NoError(t, stage.Pre(context.Background(), authRequest(good), Context{}))

	bad := signToken(t, testSecret, "alice", "someone-else", time.Minute)
	assert.ErrorIs(t, stage.Pre(context.Background(), authRequest(bad), Context{}), ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	header := http.Header{}
	assert.Empty(t, bearerToken(header))

	header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerToken(header))

	header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(header))
}
