package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics for the evaluation pipeline.
type Metrics struct {
	EvaluationsTotal  prometheus.Counter
	EvaluationLatency prometheus.Histogram
	AnomaliesTotal    prometheus.Counter
	ViolationsTotal   prometheus.Counter
	OverridesTotal    prometheus.Counter
	RemediationsTotal *prometheus.CounterVec
	IdentitiesCreated prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_evaluations_total",
			Help: "Total number of identity evaluations performed",
		}),
		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_evaluation_latency_seconds",
			Help:    "Latency of a full identity evaluation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		AnomaliesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_anomalies_total",
			Help: "Total number of evaluations that crossed the anomaly threshold",
		}),
		ViolationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_policy_violations_total",
			Help: "Total number of policy violations detected",
		}),
		OverridesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_decision_overrides_total",
			Help: "Total number of decisions overridden by an operator",
		}),
		RemediationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_remediations_total",
			Help: "Total number of remediation actions recorded, labeled by type",
		}, []string{"type"}),
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_identities_created_total",
			Help: "Total number of identities created",
		}),
	}
}

// ObserveEvaluation records one completed evaluation.
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m != nil {
		m.EvaluationsTotal.Inc()
		m.EvaluationLatency.Observe(d.Seconds())
	}
}

// IncrementAnomaly records one anomalous evaluation.
func (m *Metrics) IncrementAnomaly() {
	if m != nil {
		m.AnomaliesTotal.Inc()
	}
}

// AddViolations records detected policy violations.
func (m *Metrics) AddViolations(n int) {
	if m != nil && n > 0 {
		m.ViolationsTotal.Add(float64(n))
	}
}

// IncrementOverride records one operator override.
func (m *Metrics) IncrementOverride() {
	if m != nil {
		m.OverridesTotal.Inc()
	}
}

// IncrementRemediation records one remediation action by type.
func (m *Metrics) IncrementRemediation(actionType string) {
	if m != nil {
		m.RemediationsTotal.WithLabelValues(actionType).Inc()
	}
}

// IncrementIdentityCreated records one identity creation.
func (m *Metrics) IncrementIdentityCreated() {
	if m != nil {
		m.IdentitiesCreated.Inc()
	}
}
