package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vkuzn/apigw/internal/observability"
)

var stageFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_pipeline_stage_failures_total",
		Help: "Pipeline stage failures by stage and phase",
	},
	[]string{"stage", "phase"},
)

func recordStageFailure(stage, phase string) {
	stageFailuresTotal.WithLabelValues(stage, phase).Inc()
}

// MetricsStage records request count and latency for requests that traverse
// the full chain. Rejected requests are counted by the rejecting stage's
// own metrics instead.
type MetricsStage struct{}

// NewMetricsStage creates a metrics stage.
func NewMetricsStage() *MetricsStage {
	return &MetricsStage{}
}

// Name returns the stage name.
func (s *MetricsStage) Name() string {
	return "metrics"
}

// Pre stores the request start time in the shared context.
func (s *MetricsStage) Pre(_ context.Context, _ *Request, rctx Context) error {
	rctx[KeyStartNanos] = strconv.FormatInt(time.Now().UnixNano(), 10)
	return nil
}

// Post records the completed request. It runs last because Post hooks
// execute in reverse order, so the observed latency spans the whole chain.
func (s *MetricsStage) Post(_ context.Context, resp *Response, rctx Context) error {
	var duration time.Duration
	if startNanos, err := strconv.ParseInt(rctx[KeyStartNanos], 10, 64); err == nil {
		duration = time.Since(time.Unix(0, startNanos))
	}

	observability.RecordRequest(
		rctx[KeyProtocol],
		rctx[KeyMethod],
		rctx[KeyRoute],
		resp.Status,
		duration,
	)
	return nil
}
