package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call metrics for monitoring the signaling lifecycle and media negotiation
var (
	// Lifecycle metrics
	CallInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_initiated_total",
		Help: "Total number of calls initiated",
	}, []string{"call_type"})

	CallConnectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_connected_total",
		Help: "Total number of calls that reached the connected state",
	}, []string{"call_type"})

	CallEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_ended_total",
		Help: "Total number of calls ended, by terminal status",
	}, []string{"call_type", "status"})

	CallRingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "call_ring_duration_seconds",
		Help:    "Time spent in the ringing state before accept/reject/timeout",
		Buckets: []float64{1, 2.5, 5, 10, 15, 30, 45, 60},
	})

	CallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "call_duration_seconds",
		Help:    "Connected call duration as reported at end",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	}, []string{"call_type"})

	ActiveEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "call_active_engines",
		Help: "Current number of live call state machines",
	})

	// Negotiation metrics
	CandidateRelayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_candidate_relayed_total",
		Help: "Total number of local ICE candidates appended to the relay",
	})

	CandidateApplyFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_candidate_apply_failed_total",
		Help: "Total number of remote ICE candidates that failed to apply (non-fatal)",
	})

	// Cleanup metrics
	TeardownWriteFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_teardown_write_failed_total",
		Help: "Total number of best-effort cleanup writes that failed",
	}, []string{"write"}) // "status", "pointer", "summary"

	// Archive metrics
	HistoryArchivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_history_archived_total",
		Help: "Total number of ended calls archived",
	}, []string{"status"}) // "ok", "error"
)
