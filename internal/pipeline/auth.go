package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vkuzn/apigw/internal/config"
	"github.com/vkuzn/apigw/internal/observability"
)

// AuthStage verifies a Bearer JWT signed with the shared HS256 secret and
// injects the resolved subject into the request context. A missing token
// rejects the request only when the endpoint requires authentication; a
// token that is present but invalid is always rejected.
type AuthStage struct {
	secret   []byte
	issuer   string
	required bool
	logger   observability.Logger
}

// NewAuthStage creates an auth stage for one endpoint.
func NewAuthStage(cfg config.AuthConfig, required bool, logger observability.Logger) *AuthStage {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuthStage{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		required: required,
		logger:   logger,
	}
}

// Name returns the stage name.
func (s *AuthStage) Name() string {
	return "auth"
}

// Pre verifies the Authorization header.
func (s *AuthStage) Pre(_ context.Context, req *Request, rctx Context) error {
	raw := bearerToken(req.Header)
	if raw == "" {
		if !s.required {
			return nil
		}
		return &StageError{
			Stage:  s.Name(),
			Status: http.StatusUnauthorized,
			Err:    fmt.Errorf("%w: missing bearer token", ErrUnauthorized),
		}
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		s.logger.Debug("token verification failed",
			observability.String("request_id", rctx[KeyRequestID]),
			observability.Error(err),
		)
		return &StageError{
			Stage:  s.Name(),
			Status: http.StatusUnauthorized,
			Err:    fmt.Errorf("%w: %v", ErrUnauthorized, err),
		}
	}

	rctx[KeyAuthSubject] = token.Subject()
	rctx[KeyAuthToken] = raw
	return nil
}

// Post is a no-op.
func (s *AuthStage) Post(_ context.Context, _ *Response, _ Context) error {
	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(header http.Header) string {
	value := header.Get("Authorization")
	token, ok := strings.CutPrefix(value, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
