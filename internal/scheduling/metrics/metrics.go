package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal tracks health probes by record kind and resulting status
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwatch_probes_total",
			Help: "Total number of health probes",
		},
		[]string{"kind", "status"},
	)

	// ProbeLatency tracks probe latency for endpoints that responded
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinwatch_probe_latency_seconds",
			Help:    "Probe latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"kind", "mode"},
	)

	// ProbesSkipped tracks records held back by their backoff window
	ProbesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwatch_probes_skipped_total",
			Help: "Total number of probes skipped due to backoff",
		},
		[]string{"kind"},
	)

	// FetchesTotal tracks batch pulls by record kind and result
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwatch_fetches_total",
			Help: "Total number of batch fetches",
		},
		[]string{"kind", "result"},
	)

	// FetchRows tracks rows counted in successful pulls
	FetchRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwatch_fetch_rows_total",
			Help: "Total number of rows fetched",
		},
		[]string{"kind"},
	)

	// RevivalsTotal tracks dead records promoted back to live
	RevivalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwatch_revivals_total",
			Help: "Total number of revived records",
		},
		[]string{"kind"},
	)

	// RecordsByStatus tracks the registry population per status
	RecordsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinwatch_records",
			Help: "Registry records by status",
		},
		[]string{"status"},
	)

	// RecordsByBracket tracks the registry population per staleness bracket
	RecordsByBracket = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinwatch_records_by_staleness",
			Help: "Registry records by staleness bracket",
		},
		[]string{"bracket"},
	)

	// LastRunTimestamp tracks the completion time of each command
	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinwatch_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
		[]string{"command"},
	)

	// RegistrySaveErrors tracks failed registry writes
	RegistrySaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinwatch_registry_save_errors_total",
			Help: "Total number of failed registry saves",
		},
	)
)
