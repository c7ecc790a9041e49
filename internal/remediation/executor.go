// Package remediation executes and records access remediation. Revocations
// are baseline-aware: only roles gained after original provisioning are
// removed, so remediation never strips an identity below what it was hired
// with.
package remediation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/registry"
	dErrors "iam-sentinel/pkg/domain-errors"
)

// BaselineProvider resolves an identity's originally provisioned access. A
// false return means no baseline is known, in which case every currently held
// role is treated as revocable.
type BaselineProvider interface {
	Baseline(identityID string) (roles []string, entitlements []string, ok bool)
}

// BaselineFunc adapts a function to BaselineProvider.
type BaselineFunc func(identityID string) ([]string, []string, bool)

func (f BaselineFunc) Baseline(identityID string) ([]string, []string, bool) {
	return f(identityID)
}

// Executor performs remediation against the registry and keeps an append-only
// action log.
type Executor struct {
	registry *registry.Registry
	baseline BaselineProvider
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	actions []domain.RemediationAction
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New creates an Executor. The baseline provider may be nil, which disables
// baseline protection entirely.
func New(reg *registry.Registry, baseline BaselineProvider, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		baseline: baseline,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AutoRemediate applies the remediation implied by a decision outcome. For
// AUTO_REMEDIATE and RECOMMEND_REVOCATION it revokes every non-baseline role
// and records a REVOKE_ACCESS action. FLAG_FOR_REVIEW records a review task
// without touching state. Other outcomes do nothing and return nil, as does
// an unknown identity.
func (e *Executor) AutoRemediate(identityID string, outcome domain.DecisionOutcome) *domain.RemediationAction {
	identity, ok := e.registry.Identity(identityID)
	if !ok {
		return nil
	}

	switch outcome {
	case domain.OutcomeAutoRemediate, domain.OutcomeRecommendRevocation:
		var baselineRoles []string
		if e.baseline != nil {
			baselineRoles, _, _ = e.baseline.Baseline(identityID)
		}

		held := make([]string, len(identity.Roles))
		copy(held, identity.Roles)

		var revoked []string
		for _, roleID := range held {
			if containsString(baselineRoles, roleID) {
				continue
			}
			if e.registry.RevokeRole(identityID, roleID) != nil {
				revoked = append(revoked, roleID)
			}
		}
		if revoked == nil {
			revoked = []string{}
		}

		e.logger.Info("revoked excess access",
			"identity_id", identityID,
			"outcome", outcome,
			"revoked_roles", revoked)

		return e.append(domain.RemediationAction{
			ID:              uuid.NewString(),
			IdentityID:      identityID,
			Type:            domain.RemediationRevokeAccess,
			DecisionOutcome: outcome,
			Timestamp:       e.now(),
			Details: map[string]any{
				"revokedRoles": revoked,
			},
		})

	case domain.OutcomeFlagForReview:
		return e.append(domain.RemediationAction{
			ID:              uuid.NewString(),
			IdentityID:      identityID,
			Type:            domain.RemediationCreateReviewTask,
			DecisionOutcome: outcome,
			Timestamp:       e.now(),
			Details: map[string]any{
				"message": "Access review task created for manual follow-up.",
			},
		})

	default:
		return nil
	}
}

// RecordIgnored logs an operator override. The reason is mandatory.
func (e *Executor) RecordIgnored(identityID string, outcome domain.DecisionOutcome, reason string) (*domain.RemediationAction, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "override reason is required")
	}

	e.logger.Info("decision overridden by operator",
		"identity_id", identityID,
		"outcome", outcome)

	return e.append(domain.RemediationAction{
		ID:              uuid.NewString(),
		IdentityID:      identityID,
		Type:            domain.RemediationIgnored,
		DecisionOutcome: outcome,
		Timestamp:       e.now(),
		Details: map[string]any{
			"reason": reason,
		},
	}), nil
}

// Actions returns a copy of the full action log, oldest first.
func (e *Executor) Actions() []domain.RemediationAction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.RemediationAction, len(e.actions))
	copy(out, e.actions)
	return out
}

// ActionsForIdentity returns the actions recorded for one identity, oldest
// first.
func (e *Executor) ActionsForIdentity(identityID string) []domain.RemediationAction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.RemediationAction
	for _, a := range e.actions {
		if a.IdentityID == identityID {
			out = append(out, a)
		}
	}
	return out
}

// LatestForIdentity returns the most recent action for an identity, or nil.
func (e *Executor) LatestForIdentity(identityID string) *domain.RemediationAction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := len(e.actions) - 1; i >= 0; i-- {
		if e.actions[i].IdentityID == identityID {
			a := e.actions[i]
			return &a
		}
	}
	return nil
}

// ClearForIdentity drops all recorded actions for an identity. Used when an
// identity's access is deliberately re-granted so stale remediation history
// does not shadow the new state.
func (e *Executor) ClearForIdentity(identityID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.actions[:0]
	for _, a := range e.actions {
		if a.IdentityID != identityID {
			kept = append(kept, a)
		}
	}
	e.actions = kept
}

func (e *Executor) append(action domain.RemediationAction) *domain.RemediationAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, action)
	return &action
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
