package reorg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_reorgs_detected_total",
			Help: "Reorganizations detected, by the check that caught them",
		},
		[]string{"check"},
	)

	reorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropindexer_reorg_depth_blocks",
			Help:    "Number of blocks replaced by a reorganization",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), //nolint:mnd
		},
	)

	reorgLastBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_reorg_last_block",
			Help: "First replaced block of the last detected reorganization",
		},
	)

	reorgLastDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_reorg_last_detected_timestamp",
			Help: "Unix timestamp of the last detected reorganization",
		},
	)
)

func observeReorg(check string, block, depth uint64) {
	reorgsDetected.WithLabelValues(check).Inc()
	reorgDepth.Observe(float64(depth))
	reorgLastBlock.Set(float64(block))
	reorgLastDetected.SetToCurrentTime()
}
