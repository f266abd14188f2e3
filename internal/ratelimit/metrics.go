package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ratelimit_decisions_total",
			Help: "Total admit/reject decisions made by the rate limiter",
		},
		[]string{"store", "decision"},
	)

	storeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ratelimit_store_errors_total",
			Help: "Total rate limit store failures (requests admitted fail-open)",
		},
	)
)

func recordDecision(store string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	decisionsTotal.WithLabelValues(store, decision).Inc()
}

func recordStoreError() {
	storeErrorsTotal.Inc()
}
