// Package metrics holds the process wide Prometheus metrics shared by several
// components. Component specific metrics live next to the component.
package metrics

import (
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dropindexer"

var (
	dbQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_queries_total",
		Help:      "Database queries by database and operation",
	}, []string{"db", "operation"})

	dbQueryTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Duration of database operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"db", "operation"})

	dbErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_errors_total",
		Help:      "Failed database operations by database and operation",
	}, []string{"db", "operation"})

	lastIndexedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_indexed_block",
		Help:      "Last block handed to the indexer",
	}, []string{"indexer"})

	blocksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_processed_total",
		Help:      "Blocks handed to the indexer",
	}, []string{"indexer"})

	logsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logs_indexed_total",
		Help:      "Logs handled by the indexer",
	}, []string{"indexer"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time the indexer spent on one batch",
		Buckets:   prometheus.DefBuckets,
	}, []string{"indexer"})

	sourceRefetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_refetches_total",
		Help:      "Ranges fetched again after the indexer subscribed to new contracts",
	}, []string{"indexer"})

	reorgsHandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reorgs_handled_total",
		Help:      "Chain reorganizations rolled back",
	})

	componentHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_health",
		Help:      "1 when the component is healthy, 0 otherwise",
	}, []string{"component"})

	startTime = time.Now()

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 { return time.Since(startTime).Seconds() })
)

func DBQueryInc(db, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db, operation string, d time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(d.Seconds())
}

func DBErrorsInc(db, operation string) {
	dbErrors.WithLabelValues(db, operation).Inc()
}

// BatchHandled records a batch covering [fromBlock, toBlock] handled by indexer.
func BatchHandled(indexer string, logs int, fromBlock, toBlock uint64, d time.Duration) {
	logsIndexed.WithLabelValues(indexer).Add(float64(logs))
	blocksProcessed.WithLabelValues(indexer).Add(float64(toBlock - fromBlock + 1))
	lastIndexedBlock.WithLabelValues(indexer).Set(float64(toBlock))
	batchDuration.WithLabelValues(indexer).Observe(d.Seconds())
}

func SourceRefetchInc(indexer string) {
	sourceRefetches.WithLabelValues(indexer).Inc()
}

func ReorgHandledInc() {
	reorgsHandled.Inc()
}

var health = struct {
	sync.RWMutex
	components map[string]bool
}{components: make(map[string]bool)}

// ComponentHealthSet records the health of component for the gauge and the health endpoint.
func ComponentHealthSet(component string, healthy bool) {
	health.Lock()
	health.components[component] = healthy
	health.Unlock()

	value := 0.0
	if healthy {
		value = 1
	}
	componentHealth.WithLabelValues(component).Set(value)
}

// Health returns the last reported health of every component.
func Health() map[string]bool {
	health.RLock()
	defer health.RUnlock()

	return maps.Clone(health.components)
}
