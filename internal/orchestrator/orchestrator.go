// Package orchestrator composes the evaluation pipeline: registry snapshot,
// risk scoring, policy checks, decision, audit record, remediation lookup. It
// owns no domain logic of its own beyond counters and composition.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"iam-sentinel/internal/audit"
	"iam-sentinel/internal/decision"
	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/platform/metrics"
	"iam-sentinel/internal/policy"
	"iam-sentinel/internal/registry"
	"iam-sentinel/internal/remediation"
	"iam-sentinel/internal/risk"
	dErrors "iam-sentinel/pkg/domain-errors"
	pstrings "iam-sentinel/pkg/platform/strings"
)

// anomalyRiskThreshold marks an evaluation anomalous on risk score alone.
const anomalyRiskThreshold = 70

// evaluateAllConcurrency caps parallel evaluations in EvaluateAll.
const evaluateAllConcurrency = 8

// Evaluation is the per-identity view assembled by one pipeline run.
type Evaluation struct {
	Identity    domain.Identity             `json:"identity"`
	Risk        domain.RiskEvaluationResult `json:"risk"`
	Violations  []domain.PolicyViolation    `json:"violations"`
	Decision    domain.DecisionResult       `json:"decision"`
	Audit       domain.AuditRecord          `json:"audit"`
	Anomaly     bool                        `json:"anomaly"`
	Remediation *domain.RemediationAction   `json:"remediation,omitempty"`
}

// Counters are the running totals the orchestrator tracks across its
// lifetime. Prometheus carries the same signals for scraping; these are the
// API-facing snapshot.
type Counters struct {
	TotalDecisions           int64         `json:"totalDecisions"`
	CumulativeDecisionTime   time.Duration `json:"cumulativeDecisionTime"`
	AnomaliesDetected        int64         `json:"anomaliesDetected"`
	PolicyViolationsDetected int64         `json:"policyViolationsDetected"`
	DecisionsOverridden      int64         `json:"decisionsOverridden"`
}

// RiskDistribution buckets the current population by composite risk score,
// aligned with the decision thresholds: low is below review, high is at or
// above the anomaly line.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// CreateIdentityInput is the payload for creating an identity.
type CreateIdentityInput struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	Attributes   domain.Attributes `json:"attributes"`
	Roles        []string          `json:"roles"`
	Entitlements []string          `json:"entitlements"`
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	registry *registry.Registry
	risk     *risk.Evaluator
	policy   *policy.Engine
	policies []domain.Policy
	arbiter  *decision.Arbiter
	recorder *audit.Recorder
	executor *remediation.Executor

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu       sync.Mutex
	counters Counters
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer overrides the tracer (for testing).
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// New assembles an orchestrator over fully constructed components. The policy
// set is fixed at construction.
func New(reg *registry.Registry, riskEval *risk.Evaluator, policyEngine *policy.Engine, policies []domain.Policy, arbiter *decision.Arbiter, recorder *audit.Recorder, executor *remediation.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		risk:     riskEval,
		policy:   policyEngine,
		policies: policies,
		arbiter:  arbiter,
		recorder: recorder,
		executor: executor,
		logger:   slog.Default(),
		tracer:   otel.Tracer("iam-sentinel/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EvaluateIdentity runs the full pipeline for one identity against a fresh
// snapshot.
func (o *Orchestrator) EvaluateIdentity(ctx context.Context, identityID string) (*Evaluation, error) {
	snap := o.registry.Snapshot()
	return o.evaluate(ctx, identityID, snap)
}

// EvaluateAll evaluates every known identity against a single consistent
// snapshot. Identities removed between listing and evaluation are skipped.
func (o *Orchestrator) EvaluateAll(ctx context.Context) ([]Evaluation, error) {
	snap := o.registry.Snapshot()
	ids := make([]string, 0, len(snap.Identities))
	for id := range snap.Identities {
		ids = append(ids, id)
	}

	results := make([]*Evaluation, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evaluateAllConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			ev, err := o.evaluate(gctx, id, snap)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeNotFound) {
					return nil
				}
				return err
			}
			results[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Evaluation, 0, len(results))
	for _, ev := range results {
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, identityID string, snap registry.Snapshot) (*Evaluation, error) {
	identity, ok := snap.Identities[identityID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.evaluate",
		trace.WithAttributes(attribute.String("identity.id", identityID)))
	defer span.End()

	start := time.Now()

	riskResult := o.risk.Evaluate(identity, snap)
	violations := o.policy.Evaluate(identity, snap, o.policies)
	decisionResult := o.arbiter.Decide(ctx, identity, riskResult, violations)

	anomaly := riskResult.RiskScore >= anomalyRiskThreshold ||
		policy.HasSeverityAtLeast(violations, domain.SeverityHigh)

	span.SetAttributes(
		attribute.Int("risk.score", riskResult.RiskScore),
		attribute.Int("policy.violations", len(violations)),
		attribute.String("decision.outcome", string(decisionResult.Outcome)),
		attribute.Bool("anomaly", anomaly),
	)

	record := o.recorder.CreateRecord(ctx, identity, snap, decisionResult, riskResult, violations)
	latest := o.executor.LatestForIdentity(identityID)

	elapsed := time.Since(start)

	o.mu.Lock()
	o.counters.TotalDecisions++
	o.counters.CumulativeDecisionTime += elapsed
	if anomaly {
		o.counters.AnomaliesDetected++
	}
	o.counters.PolicyViolationsDetected += int64(len(violations))
	o.mu.Unlock()

	o.metrics.ObserveEvaluation(elapsed)
	o.metrics.AddViolations(len(violations))
	if anomaly {
		o.metrics.IncrementAnomaly()
		o.logger.Warn("anomaly detected",
			"identity_id", identityID,
			"risk_score", riskResult.RiskScore,
			"violations", len(violations),
			"outcome", decisionResult.Outcome)
	}

	return &Evaluation{
		Identity:    identity,
		Risk:        riskResult,
		Violations:  violations,
		Decision:    decisionResult,
		Audit:       record,
		Anomaly:     anomaly,
		Remediation: latest,
	}, nil
}

// CreateIdentity validates and registers a new identity. A missing id is
// generated; a missing name or department is rejected before any mutation.
func (o *Orchestrator) CreateIdentity(input CreateIdentityInput) (domain.Identity, error) {
	if input.Name == "" {
		return domain.Identity{}, dErrors.New(dErrors.CodeValidation, "identity name is required")
	}
	if input.Attributes.Department == "" {
		return domain.Identity{}, dErrors.New(dErrors.CodeValidation, "identity department is required")
	}

	identity := domain.Identity{
		ID:           input.ID,
		Name:         input.Name,
		Attributes:   input.Attributes,
		Roles:        pstrings.DedupeAndTrim(input.Roles),
		Entitlements: pstrings.DedupeAndTrim(input.Entitlements),
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.Roles == nil {
		identity.Roles = []string{}
	}
	if identity.Entitlements == nil {
		identity.Entitlements = []string{}
	}

	o.registry.UpsertIdentity(identity)
	o.metrics.IncrementIdentityCreated()
	o.logger.Info("identity created", "identity_id", identity.ID, "name", identity.Name)
	return identity, nil
}

// RemoveIdentity deletes an identity from the registry.
func (o *Orchestrator) RemoveIdentity(identityID string) error {
	if !o.registry.RemoveIdentity(identityID) {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	o.logger.Info("identity removed", "identity_id", identityID)
	return nil
}

// Identity returns the current state of one identity.
func (o *Orchestrator) Identity(identityID string) (domain.Identity, error) {
	identity, ok := o.registry.Identity(identityID)
	if !ok {
		return domain.Identity{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	return identity, nil
}

// Identities returns the current identity population, ordered by id.
func (o *Orchestrator) Identities() []domain.Identity {
	snap := o.registry.Snapshot()
	out := make([]domain.Identity, 0, len(snap.Identities))
	for _, identity := range snap.Identities {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Roles returns the role catalog, ordered by id.
func (o *Orchestrator) Roles() []domain.Role {
	snap := o.registry.Snapshot()
	out := make([]domain.Role, 0, len(snap.Roles))
	for _, role := range snap.Roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entitlements returns the entitlement catalog, ordered by id.
func (o *Orchestrator) Entitlements() []domain.Entitlement {
	snap := o.registry.Snapshot()
	out := make([]domain.Entitlement, 0, len(snap.Entitlements))
	for _, ent := range snap.Entitlements {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AssignRole grants a role and clears the identity's remediation history so a
// deliberate re-grant is not shadowed by stale revocation records.
func (o *Orchestrator) AssignRole(identityID, roleID string) (domain.Identity, error) {
	if roleID == "" {
		return domain.Identity{}, dErrors.New(dErrors.CodeInvalidInput, "role id is required")
	}
	if o.registry.AssignRole(identityID, roleID) == nil {
		return domain.Identity{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	o.executor.ClearForIdentity(identityID)

	identity, _ := o.registry.Identity(identityID)
	return identity, nil
}

// SimulateAbnormalRole assigns a role, records a history snapshot of the new
// state, and immediately re-evaluates. Used for demonstrating anomaly
// detection against a known-bad grant.
func (o *Orchestrator) SimulateAbnormalRole(ctx context.Context, identityID, roleID string) (*Evaluation, error) {
	if roleID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role id is required")
	}
	if o.registry.AssignRole(identityID, roleID) == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}

	identity, _ := o.registry.Identity(identityID)
	o.registry.RecordSnapshot(identityID, domain.StateSnapshot{
		Roles:        identity.Roles,
		Entitlements: identity.Entitlements,
		Status:       "NORMAL",
	})

	return o.EvaluateIdentity(ctx, identityID)
}

// Remediate applies the remediation implied by an outcome.
func (o *Orchestrator) Remediate(identityID string, outcome domain.DecisionOutcome) (*domain.RemediationAction, error) {
	if !domain.ValidOutcome(outcome) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown decision outcome")
	}
	if _, ok := o.registry.Identity(identityID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}

	action := o.executor.AutoRemediate(identityID, outcome)
	if action != nil {
		o.metrics.IncrementRemediation(string(action.Type))
	}
	return action, nil
}

// Override records an operator decision override and bumps the override
// counter.
func (o *Orchestrator) Override(identityID string, outcome domain.DecisionOutcome, reason string) (*domain.RemediationAction, error) {
	action, err := o.executor.RecordIgnored(identityID, outcome, reason)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.counters.DecisionsOverridden++
	o.mu.Unlock()
	o.metrics.IncrementOverride()
	o.metrics.IncrementRemediation(string(action.Type))
	return action, nil
}

// Metrics returns a copy of the running counters.
func (o *Orchestrator) Metrics() Counters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

// AuditLog returns every persisted audit record.
func (o *Orchestrator) AuditLog(ctx context.Context) ([]domain.AuditRecord, error) {
	return o.recorder.Records(ctx)
}

// AuditLogForIdentity returns the audit records for one identity.
func (o *Orchestrator) AuditLogForIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error) {
	return o.recorder.RecordsForIdentity(ctx, identityID)
}

// ExportAuditLog returns the full audit trail for export.
func (o *Orchestrator) ExportAuditLog(ctx context.Context) ([]domain.AuditRecord, error) {
	return o.recorder.Records(ctx)
}

// RemediationLog returns every recorded remediation action.
func (o *Orchestrator) RemediationLog() []domain.RemediationAction {
	return o.executor.Actions()
}

// RiskDistributionReport evaluates the full population and buckets it by
// composite risk score.
func (o *Orchestrator) RiskDistributionReport(ctx context.Context) (RiskDistribution, error) {
	all, err := o.EvaluateAll(ctx)
	if err != nil {
		return RiskDistribution{}, err
	}

	var dist RiskDistribution
	for _, ev := range all {
		switch {
		case ev.Risk.RiskScore >= anomalyRiskThreshold:
			dist.High++
		case ev.Risk.RiskScore >= 40:
			dist.Medium++
		default:
			dist.Low++
		}
	}
	return dist, nil
}
