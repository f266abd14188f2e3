package pipeline

import (
	"context"

	"github.com/vkuzn/apigw/internal/observability"
)

// LoggingStage logs request arrival and completion. It never mutates the
// request context.
type LoggingStage struct {
	logger observability.Logger
}

// NewLoggingStage creates a logging stage.
func NewLoggingStage(logger observability.Logger) *LoggingStage {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LoggingStage{logger: logger}
}

// Name returns the stage name.
func (s *LoggingStage) Name() string {
	return "logging"
}

// Pre logs the inbound request.
func (s *LoggingStage) Pre(_ context.Context, req *Request, rctx Context) error {
	s.logger.Info("request received",
		observability.String("method", req.Method),
		observability.String("path", req.Path),
		observability.String("protocol", rctx[KeyProtocol]),
		observability.String("remote_addr", rctx[KeyClientAddr]),
		observability.String("request_id", rctx[KeyRequestID]),
	)
	return nil
}

// Post logs the outbound response.
func (s *LoggingStage) Post(_ context.Context, resp *Response, rctx Context) error {
	s.logger.Info("request completed",
		observability.Int("status", resp.Status),
		observability.String("route", rctx[KeyRoute]),
		observability.String("request_id", rctx[KeyRequestID]),
	)
	return nil
}
