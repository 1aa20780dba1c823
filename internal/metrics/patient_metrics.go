package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	patientOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_operations_total",
			Help: "Total number of patient repository operations",
		},
		[]string{"operation", "outcome"},
	)

	patientOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patient_operation_duration_seconds",
			Help:    "Time spent in patient repository operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	patientRecordsSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "patient_records_skipped_total",
			Help: "Stored patient records left out of listings because they could not be decoded",
		},
	)

	seedRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_seed_runs_total",
			Help: "Total number of seed runs",
		},
		[]string{"status"},
	)

	seedRunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "patient_seed_duration_seconds",
			Help:    "Time spent loading seed files",
			Buckets: prometheus.DefBuckets,
		},
	)

	seedRecordsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_seed_records_total",
			Help: "Seed records by result",
		},
		[]string{"result"}, // "stored", "invalid", "duplicate"
	)
)

// RecordPatientOperation records one repository call.
func RecordPatientOperation(operation, outcome string, duration time.Duration) {
	patientOperationsTotal.WithLabelValues(operation, outcome).Inc()
	patientOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSkippedRecord counts a stored record that failed to decode.
func RecordSkippedRecord() {
	patientRecordsSkipped.Inc()
}

// RecordSeedRun records a finished seed run and its per-record results.
func RecordSeedRun(status string, startTime time.Time, stored, invalid, duplicate int) {
	seedRunsTotal.WithLabelValues(status).Inc()
	seedRunDuration.Observe(time.Since(startTime).Seconds())

	seedRecordsTotal.WithLabelValues("stored").Add(float64(stored))
	if invalid > 0 {
		seedRecordsTotal.WithLabelValues("invalid").Add(float64(invalid))
	}
	if duplicate > 0 {
		seedRecordsTotal.WithLabelValues("duplicate").Add(float64(duplicate))
	}
}
