package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes, split by whether the external service produced them
	Outcomes *prometheus.CounterVec

	// Fallbacks from the external decision path to the local heuristic
	Fallbacks prometheus.Counter

	// External decision service round-trip latency
	ExternalLatency prometheus.Histogram
}

// New creates a new Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_decision_outcomes_total",
			Help: "Total decisions by outcome and origin",
		}, []string{"outcome", "used_llm"}),

		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_decision_fallbacks_total",
			Help: "Total external decision attempts that fell back to the local heuristic",
		}),

		ExternalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_decision_external_duration_seconds",
			Help:    "Duration of external decision service calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
	}
}

// IncrementOutcome records a decision outcome and its origin.
func (m *Metrics) IncrementOutcome(outcome string, usedLLM bool) {
	if m != nil {
		origin := "false"
		if usedLLM {
			origin = "true"
		}
		m.Outcomes.WithLabelValues(outcome, origin).Inc()
	}
}

// IncrementFallback records a fallback to the local heuristic.
func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.Fallbacks.Inc()
	}
}

// ObserveExternalLatency records the duration of an external decision call.
func (m *Metrics) ObserveExternalLatency(d time.Duration) {
	if m != nil {
		m.ExternalLatency.Observe(d.Seconds())
	}
}
