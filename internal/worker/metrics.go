package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// entriesProcessed counts claimed queue entries by final outcome.
	entriesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_worker_entries_total",
			Help: "Total queue entries processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// processingLat records end-to-end entry processing time. Buckets reach
	// into the tens of seconds because a cold classification plus two DB
	// transactions is not interactive work.
	processingLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_worker_processing_seconds",
			Help:    "Time from claim to ack per queue entry.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// entriesInflight gauges entries currently inside the pipeline.
	entriesInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_worker_entries_inflight",
			Help: "Queue entries currently being processed.",
		},
	)

	// escalations counts human handoffs by category.
	escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_worker_escalations_total",
			Help: "Total conversations escalated to a human, by category.",
		},
		[]string{"category"},
	)

	// sweepClosed counts conversations auto-resolved by the maintenance sweep.
	sweepClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_worker_sweep_closed_total",
			Help: "Conversations auto-resolved for inactivity.",
		},
	)
)

func init() {
	prometheus.MustRegister(entriesProcessed, processingLat, entriesInflight, escalations, sweepClosed)
}
