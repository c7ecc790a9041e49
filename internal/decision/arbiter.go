// Package decision turns a risk evaluation and a set of policy violations
// into a single access decision. A local heuristic is always available; when
// an external decision service is configured it is tried first, and any
// failure on that path degrades silently to the heuristic.
package decision

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"iam-sentinel/internal/decision/metrics"
	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/explain"
)

const defaultExternalTimeout = 15 * time.Second

const systemPrompt = "You are an IAM decision engine. Given identity attributes, risk scores, " +
	"and policy violations, you must choose a single outcome: APPROVE, FLAG_FOR_REVIEW, " +
	"RECOMMEND_REVOCATION, or AUTO_REMEDIATE. Provide a concise rationale and a confidence " +
	"score between 0 and 1. Respond strictly as JSON with fields: outcome, rationale, confidence."

// Heuristic branch thresholds over the composite risk score.
const (
	autoRemediateThreshold = 85
	revocationThreshold    = 70
	reviewThreshold        = 40
)

const (
	rationaleAutoRemediate = "Identity shows extremely high risk and at least one critical policy violation, " +
		"so automatic remediation is the safest action."
	rationaleRevocation = "Elevated risk and/or policy violations indicate that current access should likely be revoked."
	rationaleReview     = "Moderate risk without severe violations suggests a human access review is appropriate."
	rationaleApprove    = "Low risk and no significant policy violations; access is acceptable."
)

// Arbiter decides access outcomes.
type Arbiter struct {
	generator explain.Generator
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Arbiter.
type Option func(*Arbiter)

// WithGenerator enables the external decision path.
func WithGenerator(g explain.Generator) Option {
	return func(a *Arbiter) {
		a.generator = g
	}
}

// WithTimeout bounds external decision calls.
func WithTimeout(d time.Duration) Option {
	return func(a *Arbiter) {
		a.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Arbiter) {
		a.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Arbiter) {
		a.metrics = m
	}
}

// New creates an Arbiter. Without WithGenerator it always decides locally.
func New(opts ...Option) *Arbiter {
	a := &Arbiter{
		timeout: defaultExternalTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Decide produces a decision for one identity. It never returns an error:
// every failure mode on the external path resolves to the local heuristic.
func (a *Arbiter) Decide(ctx context.Context, identity domain.Identity, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) domain.DecisionResult {
	if a.generator == nil {
		result := a.decideHeuristically(identity, risk, violations)
		a.metrics.IncrementOutcome(string(result.Outcome), result.UsedLLM)
		return result
	}

	result, ok := a.decideExternally(ctx, identity, risk, violations)
	if !ok {
		a.metrics.IncrementFallback()
		result = a.decideHeuristically(identity, risk, violations)
	}
	a.metrics.IncrementOutcome(string(result.Outcome), result.UsedLLM)
	return result
}

type externalDecision struct {
	Outcome    string  `json:"outcome"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

func (a *Arbiter) decideExternally(ctx context.Context, identity domain.Identity, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) (domain.DecisionResult, bool) {
	payload, err := json.MarshalIndent(map[string]any{
		"identity": map[string]any{
			"id":           identity.ID,
			"name":         identity.Name,
			"attributes":   identity.Attributes,
			"roles":        identity.Roles,
			"entitlements": identity.Entitlements,
		},
		"risk":             risk,
		"policyViolations": violations,
	}, "", "  ")
	if err != nil {
		a.logger.Warn("decision payload marshal failed", "identity_id", identity.ID, "error", err)
		return domain.DecisionResult{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.generator.Generate(callCtx, systemPrompt+"\n\n"+string(payload))
	a.metrics.ObserveExternalLatency(time.Since(start))
	if err != nil {
		a.logger.Warn("external decision call failed, using heuristic",
			"identity_id", identity.ID, "error", err)
		return domain.DecisionResult{}, false
	}

	parsed, ok := parseExternalDecision(raw)
	if !ok {
		a.logger.Warn("external decision unparsable, using heuristic",
			"identity_id", identity.ID)
		return domain.DecisionResult{}, false
	}

	return domain.DecisionResult{
		IdentityID: identity.ID,
		Outcome:    domain.DecisionOutcome(parsed.Outcome),
		Rationale:  parsed.Rationale,
		Confidence: parsed.Confidence,
		UsedLLM:    true,
	}, true
}

// parseExternalDecision extracts the JSON object embedded in the model's
// free-text output and validates it against the outcome enum.
func parseExternalDecision(raw string) (externalDecision, bool) {
	var parsed externalDecision

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return parsed, false
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return parsed, false
	}
	if !domain.ValidOutcome(domain.DecisionOutcome(parsed.Outcome)) {
		return parsed, false
	}
	if parsed.Rationale == "" || parsed.Confidence < 0 || parsed.Confidence > 1 {
		return parsed, false
	}
	return parsed, true
}

func (a *Arbiter) decideHeuristically(identity domain.Identity, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) domain.DecisionResult {
	hasCritical := false
	for _, v := range violations {
		if v.Severity == domain.SeverityCritical {
			hasCritical = true
			break
		}
	}

	var (
		outcome    domain.DecisionOutcome
		rationale  string
		confidence float64
	)
	switch {
	case risk.RiskScore >= autoRemediateThreshold || hasCritical:
		outcome, rationale, confidence = domain.OutcomeAutoRemediate, rationaleAutoRemediate, 0.95
	case risk.RiskScore >= revocationThreshold || len(violations) > 0:
		outcome, rationale, confidence = domain.OutcomeRecommendRevocation, rationaleRevocation, 0.90
	case risk.RiskScore >= reviewThreshold:
		outcome, rationale, confidence = domain.OutcomeFlagForReview, rationaleReview, 0.75
	default:
		outcome, rationale, confidence = domain.OutcomeApprove, rationaleApprove, 0.90
	}

	return domain.DecisionResult{
		IdentityID: identity.ID,
		Outcome:    outcome,
		Rationale:  rationale,
		Confidence: confidence,
		UsedLLM:    false,
	}
}
