package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal tracks facade submissions by domain and outcome
	// (online, queued, rejected).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_submissions_total",
			Help: "Total number of submissions",
		},
		[]string{"domain", "result"},
	)

	// DispatchAttemptsTotal tracks individual dispatch attempts by result
	// (ok, or the failure category).
	DispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_dispatch_attempts_total",
			Help: "Total number of request attempts",
		},
		[]string{"path", "result"},
	)

	// DispatchLatency tracks request attempt latency.
	DispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_dispatch_latency_seconds",
			Help:    "Request attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// RetriesTotal counts backoff waits taken by the dispatcher.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_retries_total",
			Help: "Total number of retries after backoff",
		},
		[]string{"path"},
	)

	// SyncMutationsTotal tracks sync pass results per domain.
	SyncMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_sync_mutations_total",
			Help: "Total number of queued mutations processed by sync passes",
		},
		[]string{"domain", "result"},
	)

	// QueueDepth tracks pending mutations per domain.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldsync_queue_depth",
			Help: "Number of pending mutations in the durable queue",
		},
		[]string{"domain"},
	)

	// Online reports the connectivity monitor's current view (1 online).
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_online",
			Help: "Whether the remote authority is currently reachable",
		},
	)
)
