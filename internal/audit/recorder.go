package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/explain"
	"iam-sentinel/internal/registry"
)

const defaultExplainTimeout = 15 * time.Second

const explainPrompt = "You are an IAM audit and explainability engine. Given identity details, risk scores, " +
	"policy violations, and a final decision, generate a clear, concise explanation suitable " +
	"for auditors and security architects. It must explicitly explain why risky combinations " +
	"like interns holding production database admin roles are dangerous (e.g., blast radius, " +
	"data exfiltration, SoD, regulatory exposure). Use 1-3 short paragraphs."

// Sink receives a copy of every record after it is persisted.
type Sink interface {
	Publish(ctx context.Context, record domain.AuditRecord) error
}

// Recorder builds and persists audit records. Record creation never fails the
// caller: explanation generation falls back to a local template and a failed
// store append is logged, not propagated.
type Recorder struct {
	store     Store
	sink      Sink
	generator explain.Generator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithGenerator enables external explanation generation.
func WithGenerator(g explain.Generator) Option {
	return func(r *Recorder) {
		r.generator = g
	}
}

// WithSink streams persisted records to an external sink.
func WithSink(s Sink) Option {
	return func(r *Recorder) {
		r.sink = s
	}
}

// WithTimeout bounds external explanation calls.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		timeout: defaultExplainTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRecord assembles the audit record for one evaluation, persists it and
// returns it. The snapshot is used to resolve role names and domains for the
// explanation text.
func (r *Recorder) CreateRecord(ctx context.Context, identity domain.Identity, snap registry.Snapshot, decision domain.DecisionResult, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) domain.AuditRecord {
	record := domain.AuditRecord{
		ID:          uuid.NewString(),
		IdentityID:  identity.ID,
		Timestamp:   r.now(),
		Decision:    decision,
		Risk:        risk,
		Violations:  violations,
		Explanation: r.explanation(ctx, identity, snap, decision, risk, violations),
	}

	if err := r.store.Append(ctx, record); err != nil {
		r.logger.Error("audit record append failed",
			"identity_id", identity.ID, "record_id", record.ID, "error", err)
	}
	if r.sink != nil {
		if err := r.sink.Publish(ctx, record); err != nil {
			r.logger.Warn("audit record publish failed",
				"identity_id", identity.ID, "record_id", record.ID, "error", err)
		}
	}
	return record
}

// Records returns every persisted audit record.
func (r *Recorder) Records(ctx context.Context) ([]domain.AuditRecord, error) {
	return r.store.List(ctx)
}

// RecordsForIdentity returns the persisted records for one identity.
func (r *Recorder) RecordsForIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error) {
	return r.store.ListByIdentity(ctx, identityID)
}

func (r *Recorder) explanation(ctx context.Context, identity domain.Identity, snap registry.Snapshot, decision domain.DecisionResult, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) string {
	if r.generator == nil {
		return localExplanation(identity, snap, decision, risk, violations)
	}

	payload, err := json.MarshalIndent(map[string]any{
		"identity":         identity,
		"risk":             risk,
		"policyViolations": violations,
		"decision":         decision,
	}, "", "  ")
	if err != nil {
		return localExplanation(identity, snap, decision, risk, violations)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.generator.Generate(callCtx, explainPrompt+"\n\n"+string(payload))
	if err != nil || strings.TrimSpace(text) == "" {
		r.logger.Warn("external explanation failed, using local template",
			"identity_id", identity.ID, "error", err)
		return localExplanation(identity, snap, decision, risk, violations)
	}
	return strings.TrimSpace(text)
}

// localExplanation is the deterministic fallback template. It always covers
// the violation summary, the outcome with its confidence, and an explicit
// callout when an intern holds production-like or administrative access.
func localExplanation(identity domain.Identity, snap registry.Snapshot, decision domain.DecisionResult, risk domain.RiskEvaluationResult, violations []domain.PolicyViolation) string {
	criticalCount := 0
	for _, v := range violations {
		if v.Severity == domain.SeverityCritical {
			criticalCount++
		}
	}

	policySummary := "No explicit policy violations were detected for this identity."
	if len(violations) > 0 {
		policySummary = fmt.Sprintf("Detected %d policy violation(s), including %d critical.",
			len(violations), criticalCount)
	}

	parts := []string{
		fmt.Sprintf("Identity %s (%s, %s) was evaluated with a composite risk score of %d (0-100). %s",
			identity.Name, identity.Attributes.Title, identity.Attributes.Department,
			risk.RiskScore, policySummary),
		fmt.Sprintf("The decision engine selected outcome %s with confidence %.1f%%, "+
			"based on risk factors (%s) and the presence of high-sensitivity roles and domains.",
			decision.Outcome, decision.Confidence*100, risk.ContextSummary),
	}

	if criticalCount > 0 {
		parts = append(parts, "Critical violations indicate that the current access profile "+
			"conflicts with least privilege or segregation of duties expectations.")
	}

	if identity.Attributes.Seniority == domain.SeniorityIntern && holdsProductionLikeAccess(identity, snap) {
		parts = append(parts, "Granting production-adjacent or administrative roles to an intern "+
			"materially increases the blast radius of simple mistakes and makes deliberate abuse "+
			"or credential theft far more damaging. An intern typically lacks the operational "+
			"context and oversight expected for direct production access, and their credentials "+
			"are a softer target for attackers.")
	}

	return strings.Join(parts, " ")
}

// holdsProductionLikeAccess checks raw role ids plus resolved role names and
// domains for production or admin markers, so unresolved role ids still
// trigger the callout.
func holdsProductionLikeAccess(identity domain.Identity, snap registry.Snapshot) bool {
	marked := func(s string) bool {
		lower := strings.ToLower(s)
		return strings.Contains(lower, "prod") || strings.Contains(lower, "admin")
	}
	for _, roleID := range identity.Roles {
		if marked(roleID) {
			return true
		}
		role, ok := snap.Role(roleID)
		if !ok {
			continue
		}
		if marked(role.Name) {
			return true
		}
		for _, d := range role.Domains {
			if marked(d) {
				return true
			}
		}
	}
	return false
}
