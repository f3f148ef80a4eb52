// Package metrics provides Prometheus observability for the compliance
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

// Metrics holds the pipeline's Prometheus collectors. All methods are
// nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	DocumentsProcessed prometheus.Counter
	Violations         *prometheus.CounterVec
	AutoApprovals      prometheus.Counter
	AutoFixesApplied   prometheus.Counter
	ProcessingTime     prometheus.Histogram
}

// New creates a Metrics instance with all pipeline collectors registered on
// the default registry.
func New() *Metrics {
	return &Metrics{
		DocumentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "documents_processed_total",
			Help: "Total documents processed",
		}),

		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "violations_total",
			Help: "Total violations detected by severity",
		}, []string{"severity"}),

		AutoApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autopasses_total",
			Help: "Total auto-approved documents",
		}),

		AutoFixesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auto_fix_applied_total",
			Help: "Total auto-fixes applied",
		}),

		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "processing_time_seconds",
			Help:    "Document processing time",
			Buckets: []float64{1, 5, 10, 30, 60},
		}),
	}
}

// RecordResult updates every collector affected by a completed run.
func (m *Metrics) RecordResult(res *pipeline.Result, d time.Duration) {
	if m == nil {
		return
	}

	m.DocumentsProcessed.Inc()
	m.ProcessingTime.Observe(d.Seconds())

	for _, v := range res.Violations {
		m.Violations.WithLabelValues(string(v.Severity)).Inc()
	}

	switch res.ApprovalDecision {
	case pipeline.OutcomeAutoApprove:
		m.AutoApprovals.Inc()
	case pipeline.OutcomeAutoFix:
		m.AutoFixesApplied.Inc()
	}
}
