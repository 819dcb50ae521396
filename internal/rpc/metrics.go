package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropindexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "RPC calls by method and outcome (ok, transient, permanent)",
	}, []string{"method", "outcome"})

	rpcCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dropindexer",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Duration of RPC calls including retries",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), //nolint:mnd
	}, []string{"method"})

	rpcRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropindexer",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Retried RPC attempts by method",
	}, []string{"method"})
)

func observeCall(method string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errorType(err)
	}

	rpcCalls.WithLabelValues(method, outcome).Inc()
	rpcCallDuration.WithLabelValues(method).Observe(d.Seconds())
}

func retried(method string) {
	rpcRetries.WithLabelValues(method).Inc()
}
