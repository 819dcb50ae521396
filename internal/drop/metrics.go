package drop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No-op reasons.
const (
	reasonUnknownCollection = "unknown_collection"
	reasonUnknownFactory    = "unknown_factory"
	reasonUnknownHolder     = "unknown_holder"
	reasonAlreadyApplied    = "already_applied"
	reasonUnknownEvent      = "unknown_event"
	reasonMalformedLog      = "malformed_log"
)

var (
	eventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_events_handled_total",
			Help: "Total number of events applied to the entity store",
		},
		[]string{"indexer", "event"},
	)

	handlerNoOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_handler_noops_total",
			Help: "Total number of events skipped without changing any entity",
		},
		[]string{"indexer", "event", "reason"},
	)

	integrityViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_integrity_violations_total",
			Help: "Total number of events rejected because of a data integrity violation",
		},
		[]string{"indexer", "event"},
	)

	collectionsTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropindexer_collections_tracked",
			Help: "Number of collections whose events are indexed",
		},
		[]string{"indexer"},
	)
)

func EventHandledInc(indexer, event string) {
	eventsHandled.WithLabelValues(indexer, event).Inc()
}

func NoOpInc(indexer, event, reason string) {
	handlerNoOps.WithLabelValues(indexer, event, reason).Inc()
}

func IntegrityViolationInc(indexer, event string) {
	integrityViolations.WithLabelValues(indexer, event).Inc()
}

func CollectionsTrackedSet(indexer string, n int) {
	collectionsTracked.WithLabelValues(indexer).Set(float64(n))
}

func CollectionsTrackedInc(indexer string) {
	collectionsTracked.WithLabelValues(indexer).Inc()
}
