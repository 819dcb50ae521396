package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	finalizedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_finalized_block",
			Help: "The current finalized block number from RPC",
		},
	)

	logSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_log_sources",
			Help: "Number of contract addresses in the log filter",
		},
	)

	logsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropindexer_logs_fetched_total",
			Help: "Total number of logs fetched after filtering",
		},
	)

	rangeSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropindexer_log_range_splits_total",
			Help: "Total number of times a log query was narrowed because the node returned too many results",
		},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropindexer_log_cache_hits_total",
			Help: "Total number of contract ranges served from the log cache instead of the node",
		},
	)

	cachedLogs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_log_cache_logs",
			Help: "Number of logs held in the log cache",
		},
	)
)

func FinalizedBlockLogSet(blockNum uint64) {
	finalizedBlock.Set(float64(blockNum))
}

func SourcesSet(n int) {
	logSources.Set(float64(n))
}

func LogsFetchedAdd(n int) {
	logsFetched.Add(float64(n))
}

func RangeSplitInc() {
	rangeSplits.Inc()
}

func CacheHitAdd(n int) {
	cacheHits.Add(float64(n))
}

func CachedLogsSet(n int) {
	cachedLogs.Set(float64(n))
}
