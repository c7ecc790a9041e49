package handler

import "iam-sentinel/internal/orchestrator"

// MetricsSummaryResponse is the HTTP response for GET /metrics/summary.
type MetricsSummaryResponse struct {
	TotalDecisions           int64   `json:"totalDecisions"`
	AvgDecisionTimeMs        float64 `json:"avgDecisionTimeMs"`
	AnomaliesDetected        int64   `json:"anomaliesDetected"`
	PolicyViolationsDetected int64   `json:"policyViolationsDetected"`
	DecisionsOverridden      int64   `json:"decisionsOverridden"`
}

// FromCounters converts the orchestrator's running counters to the summary
// shape, deriving the average decision latency.
func FromCounters(c orchestrator.Counters) MetricsSummaryResponse {
	var avgMs float64
	if c.TotalDecisions > 0 {
		avgMs = float64(c.CumulativeDecisionTime.Milliseconds()) / float64(c.TotalDecisions)
	}
	return MetricsSummaryResponse{
		TotalDecisions:           c.TotalDecisions,
		AvgDecisionTimeMs:        avgMs,
		AnomaliesDetected:        c.AnomaliesDetected,
		PolicyViolationsDetected: c.PolicyViolationsDetected,
		DecisionsOverridden:      c.DecisionsOverridden,
	}
}
