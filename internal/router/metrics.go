package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_router_resolutions_total",
		Help: "Route resolution attempts by protocol and outcome",
	},
	[]string{"protocol", "outcome"},
)

func recordResolve(protocol, outcome string) {
	resolutionsTotal.WithLabelValues(protocol, outcome).Inc()
}
