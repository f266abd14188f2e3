package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts inbound requests handled by the gateway.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests handled by the gateway",
		},
		[]string{"protocol", "method", "route", "status"},
	)

	// RequestDuration observes end-to-end request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request latency observed at the gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol", "route"},
	)

	// ActiveRequests tracks in-flight requests per protocol family.
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_active_requests",
			Help: "Number of requests currently in flight",
		},
		[]string{"protocol"},
	)
)

// RecordRequest records a completed request.
func RecordRequest(protocol, method, route string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(protocol, method, route, statusClass(status)).Inc()
	RequestDuration.WithLabelValues(protocol, route).Observe(duration.Seconds())
}

// statusClass buckets a status code into its class ("2xx", "4xx", ...).
// Raw codes would blow up label cardinality.
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

// MetricsHandler returns the Prometheus exposition handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
