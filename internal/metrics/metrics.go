// Package metrics exposes Prometheus metrics for validation and repair runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	repairRuns       *prometheus.CounterVec
	repairIterations *prometheus.CounterVec
	proposerDuration prometheus.Histogram
	semanticDegraded prometheus.Counter
	validations      *prometheus.CounterVec
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler; tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		repairRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dagforge_repair_runs_total",
			Help: "Total repair runs by terminal outcome",
		}, []string{"outcome"}),

		repairIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dagforge_repair_iterations_total",
			Help: "Total repair iterations by status",
		}, []string{"status"}),

		proposerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dagforge_fix_proposer_duration_seconds",
			Help:    "Latency of fix proposer calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),

		semanticDegraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dagforge_semantic_degraded_total",
			Help: "Total validations that fell back to schema-only",
		}),

		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dagforge_validations_total",
			Help: "Total aggregated validations by outcome",
		}, []string{"valid"}),
	}
}

// RepairRun counts a finished repair run.
func (m *Metrics) RepairRun(outcome string) {
	if m == nil {
		return
	}
	m.repairRuns.WithLabelValues(outcome).Inc()
}

// RepairIteration counts one recorded iteration.
func (m *Metrics) RepairIteration(status string) {
	if m == nil {
		return
	}
	m.repairIterations.WithLabelValues(status).Inc()
}

// ProposerCall records how long a fix proposer call took.
func (m *Metrics) ProposerCall(d time.Duration) {
	if m == nil {
		return
	}
	m.proposerDuration.Observe(d.Seconds())
}

// SemanticDegraded counts a validation that ran without the semantic layer.
func (m *Metrics) SemanticDegraded() {
	if m == nil {
		return
	}
	m.semanticDegraded.Inc()
}

// Validation counts one aggregated validation.
func (m *Metrics) Validation(valid bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(strconv.FormatBool(valid)).Inc()
}
