package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dispatch_attempts_total",
			Help: "Backend attempts by endpoint, backend, and outcome",
		},
		[]string{"endpoint", "backend", "outcome"},
	)

	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dispatches_total",
			Help: "Dispatch results by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
)

func recordAttempt(endpoint, backend, outcome string) {
	attemptsTotal.WithLabelValues(endpoint, backend, outcome).Inc()
}

func recordDispatch(endpoint, outcome string) {
	dispatchesTotal.WithLabelValues(endpoint, outcome).Inc()
}
