package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts documents by how a sweep resolved them.
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceproc_documents_total",
			Help: "Total documents handled, by outcome",
		},
		[]string{"outcome"},
	)

	// ExtractionAttempts counts extraction calls per provider.
	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceproc_extraction_attempts_total",
			Help: "Total extraction attempts",
		},
		[]string{"provider"},
	)

	// ExtractionFailures counts extraction failures per provider and kind.
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoiceproc_extraction_failures_total",
			Help: "Total extraction failures",
		},
		[]string{"provider", "kind"},
	)

	// StageLatency tracks how long each pipeline stage takes.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoiceproc_stage_latency_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// BacklogSize tracks discovered documents not yet claimed.
	BacklogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoiceproc_backlog_documents",
			Help: "Discovered documents awaiting a first processing attempt",
		},
	)
)

// Outcome label values for DocumentsTotal.
const (
	OutcomeLabelStored     = "stored"
	OutcomeLabelSkipped    = "skipped"
	OutcomeLabelReview     = "review"
	OutcomeLabelDeadLetter = "dead_letter"
)
