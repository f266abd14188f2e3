package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"target"},
	)

	breakerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_decisions_total",
			Help: "Total admit/reject decisions made by circuit breakers",
		},
		[]string{"target", "decision"},
	)

	breakerOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_outcomes_total",
			Help: "Request outcomes recorded by circuit breakers",
		},
		[]string{"target", "outcome"},
	)

	breakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
)

func recordDecision(name string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	breakerDecisionsTotal.WithLabelValues(name, decision).Inc()
}

func recordOutcome(name string, failure bool) {
	outcome := "success"
	if failure {
		outcome = "failure"
	}
	breakerOutcomesTotal.WithLabelValues(name, outcome).Inc()
}

func recordStateChange(name string, from, to State) {
	breakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(name).Set(float64(to))
}
