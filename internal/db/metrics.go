package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_maintenance_runs_total",
			Help: "Total number of maintenance passes by outcome",
		},
		[]string{"status"},
	)

	maintenanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropindexer_maintenance_duration_seconds",
			Help:    "Duration of maintenance passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	maintenanceLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_maintenance_last_run_timestamp",
			Help: "Unix timestamp of the last maintenance pass",
		},
	)

	maintenanceStepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_maintenance_step_errors_total",
			Help: "Total number of failed maintenance steps by step name",
		},
		[]string{"step"},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropindexer_wal_checkpoint_total",
			Help: "Total number of WAL checkpoints by mode",
		},
		[]string{"mode"},
	)

	dbSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropindexer_db_size_bytes",
			Help: "Size of the database and its WAL files after the last maintenance pass",
		},
	)

	spaceReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropindexer_maintenance_reclaimed_bytes_total",
			Help: "Bytes reclaimed by maintenance passes",
		},
	)
)

func observeMaintenance(duration time.Duration, err error, sizeBefore, sizeAfter int64) {
	status := "success"
	if err != nil {
		status = "error"
	}

	maintenanceRuns.WithLabelValues(status).Inc()
	maintenanceDuration.Observe(duration.Seconds())
	maintenanceLastRun.SetToCurrentTime()
	dbSize.Set(float64(sizeAfter))

	if sizeBefore > sizeAfter {
		spaceReclaimed.Add(float64(sizeBefore - sizeAfter))
	}
}

func maintenanceStepFailed(step string) {
	maintenanceStepErrors.WithLabelValues(step).Inc()
}

func walCheckpointed(mode string) {
	walCheckpoints.WithLabelValues(mode).Inc()
}
