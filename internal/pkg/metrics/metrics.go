// Package metrics defines the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Feed label values.
const (
	FeedCamera = "camera"
	FeedFleet  = "fleet"
)

var (
	// Registry holds every GuardVision collector plus the Go runtime and process collectors.
	Registry = prometheus.NewRegistry()

	// StoreConnectivityStatus is 1 while the record store transport is connected.
	StoreConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardvision_store_connectivity_status",
			Help: "The connectivity status to the record store (1=Connected, 0=Disconnected).",
		},
	)

	SnapshotsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardvision_snapshots_applied_total",
			Help: "Total number of store snapshots applied to a live feed.",
		},
		[]string{"feed"},
	)

	// RecordsDropped counts records rejected by the normalizer.
	RecordsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guardvision_records_dropped_total",
			Help: "Total number of malformed detection records dropped during normalization.",
		},
	)

	ActiveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guardvision_active_subscriptions",
			Help: "Number of open feed subscriptions.",
		},
		[]string{"feed"},
	)

	// LateCallbacks counts snapshots that arrived after their feed was closed.
	LateCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardvision_late_callbacks_total",
			Help: "Total number of store callbacks ignored because their feed was already closed.",
		},
		[]string{"feed"},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardvision_login_attempts_total",
			Help: "Total number of operator login attempts.",
		},
		[]string{"result"}, // result: success/rejected/error
	)

	// LoginLatency records how long credential verification took.
	LoginLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardvision_login_latency_seconds",
			Help:    "Latency of operator credential verification.",
			Buckets: prometheus.DefBuckets,
		},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardvision_transitions_total",
			Help: "Total number of navigation transitions requested.",
		},
		[]string{"event", "result"}, // result: ok/invalid
	)

	EvidenceExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardvision_evidence_exports_total",
			Help: "Total number of detection images exported to object storage.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		StoreConnectivityStatus,
		SnapshotsApplied,
		RecordsDropped,
		ActiveSubscriptions,
		LateCallbacks,
		LoginAttempts,
		LoginLatency,
		Transitions,
		EvidenceExports,
	)
}
