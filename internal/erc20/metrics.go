package erc20

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var externalCallFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dropindexer_external_call_failures_total",
		Help: "Total number of failed contract reads by method",
	},
	[]string{"method"},
)

func ExternalCallFailureInc(method string) {
	externalCallFailures.WithLabelValues(method).Inc()
}
