// Package pipeline runs requests through an ordered middleware chain.
//
// A chain executes every stage's Pre hook in registration order, calls the
// terminal handler, then executes every Post hook in exact reverse order.
// A Pre failure aborts the request before the terminal and skips all Post
// hooks. A Post failure discards the terminal's response and short-circuits
// the remaining Post hooks.
package pipeline

import (
	"context"
	"net/http"

	"github.com/vkuzn/apigw/internal/observability"
)

// Well-known Context keys populated by the built-in stages.
const (
	KeyRequestID   = "request.id"
	KeyProtocol    = "request.protocol"
	KeyMethod      = "request.method"
	KeyRoute       = "request.route"
	KeyClientAddr  = "request.client_addr"
	KeyStartNanos  = "metrics.start_nanos"
	KeyAuthSubject = "auth.subject"
	KeyAuthToken   = "auth.token"
)

// Context carries request-scoped string metadata across stages. It is
// shared by every stage of one request and is not safe for concurrent use.
type Context map[string]string

// Request is the inbound request as seen by the pipeline.
type Request struct {
	Method string
	Path   string
	Params map[string]string
	Header http.Header
	Body   any
}

// Response is the terminal handler's result as seen by Post hooks.
type Response struct {
	Status int
	Body   any
}

// Stage is one middleware in the chain.
type Stage interface {
	Name() string

	// Pre runs before the terminal handler. Returning an error rejects
	// the request.
	Pre(ctx context.Context, req *Request, rctx Context) error

	// Post runs after the terminal handler, in reverse stage order.
	// Returning an error discards the response.
	Post(ctx context.Context, resp *Response, rctx Context) error
}

// Terminal produces the response a successful chain traversal unwraps.
type Terminal func(ctx context.Context) (*Response, error)

// Chain is an ordered, immutable list of stages.
type Chain struct {
	stages []Stage
	logger observability.Logger
}

// NewChain builds a chain over the given stages. Order is execution order
// for Pre hooks and reverse execution order for Post hooks.
func NewChain(logger observability.Logger, stages ...Stage) *Chain {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Chain{stages: stages, logger: logger}
}

// Stages returns the stage names in Pre execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Execute runs the request through the chain.
func (c *Chain) Execute(ctx context.Context, req *Request, rctx Context, terminal Terminal) (*Response, error) {
	for _, stage := range c.stages {
		if err := stage.Pre(ctx, req, rctx); err != nil {
			recordStageFailure(stage.Name(), "pre")
			c.logger.Debug("pipeline stage rejected request",
				observability.String("stage", stage.Name()),
				observability.String("request_id", rctx[KeyRequestID]),
				observability.Error(err),
			)
			return nil, err
		}
	}

	resp, err := terminal(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(c.stages) - 1; i >= 0; i-- {
		stage := c.stages[i]
		if err := stage.Post(ctx, resp, rctx); err != nil {
			recordStageFailure(stage.Name(), "post")
			c.logger.Error("pipeline stage failed on response",
				observability.String("stage", stage.Name()),
				observability.String("request_id", rctx[KeyRequestID]),
				observability.Error(err),
			)
			return nil, err
		}
	}

	return resp, nil
}
