// Package risk scores an identity's current access against its peers, its
// seniority, and its change history. Scoring is deterministic and explainable:
// cumulative factors with fixed weights, not anomaly detection. Absent data
// degrades scores toward zero; evaluation never fails.
package risk

import (
	"fmt"
	"math"
	"time"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/registry"
)

const (
	// sensitivityScale turns a role's sensitivity weight into score points.
	sensitivityScale = 25.0
	// misalignmentPenalty is added per level of seniority shortfall.
	misalignmentPenalty = 20.0
	// rareRolePenalty is added per role no department peer holds, capped.
	rareRolePenalty = 10.0
	peerAnomalyCap  = 40.0
	// changePenalty is added per history entry in the recent window, capped.
	changePenalty = 5.0
	historicalCap = 30.0
	recentWindow  = 7 * 24 * time.Hour
)

// Evaluator computes risk scores over registry snapshots.
type Evaluator struct {
	now func() time.Time
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New creates a risk evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores one identity against a snapshot. Pure: no mutation, no I/O.
func (e *Evaluator) Evaluate(identity domain.Identity, snap registry.Snapshot) domain.RiskEvaluationResult {
	roles := snap.ResolveRoles(identity.Roles)

	sensitivity := roleSensitivityScore(roles)
	alignment := seniorityAlignmentScore(identity, roles)
	anomaly := peerAnomalyScore(identity, snap)
	historical := e.historicalChangeScore(identity)

	composite := math.Min(
		sensitivity*0.4+alignment*0.3+anomaly*0.2+historical*0.1,
		100,
	)

	summary := fmt.Sprintf(
		"roleSensitivity=%.1f, seniorityAlignment=%.1f, peerAnomaly=%.1f, historicalChange=%.1f",
		sensitivity, alignment, anomaly, historical,
	)

	return domain.RiskEvaluationResult{
		IdentityID: identity.ID,
		RiskScore:  clampScore(int(math.Round(composite))),
		Factors: domain.RiskFactors{
			RoleSensitivityScore:    sensitivity,
			SeniorityAlignmentScore: alignment,
			PeerAnomalyScore:        anomaly,
			HistoricalChangeScore:   historical,
		},
		ContextSummary: summary,
	}
}

// roleSensitivityScore sums fixed per-level weights scaled to points, capped
// at 100.
func roleSensitivityScore(roles []domain.Role) float64 {
	raw := 0.0
	for _, role := range roles {
		raw += role.Sensitivity.Weight() * sensitivityScale
	}
	return math.Min(raw, 100)
}

// seniorityAlignmentScore penalizes identities whose seniority sits below what
// their aggregate role sensitivity implies. The expected index is
// min(4, round(avgLevel+1)); the +1 offset approximates MEDIUM->JUNIOR/MID,
// HIGH->SENIOR, CRITICAL->EXECUTIVE.
func seniorityAlignmentScore(identity domain.Identity, roles []domain.Role) float64 {
	// No roles, no misalignment: an identity holding nothing carries no risk.
	if len(roles) == 0 {
		return 0
	}
	sum := 0
	for _, role := range roles {
		sum += role.Sensitivity.Level()
	}
	avgLevel := float64(sum) / float64(len(roles))

	expected := math.Min(4, math.Round(avgLevel+1))
	actual := float64(identity.Attributes.Seniority.Index())
	misalignment := math.Max(0, expected-actual)
	return misalignment * misalignmentPenalty
}

// peerAnomalyScore counts roles held by this identity that no other identity
// in the same department holds. Zero peers means zero score. The raw role id
// list is compared, deliberately including dangling ids: a role nobody can
// resolve is still access nobody else has.
func peerAnomalyScore(identity domain.Identity, snap registry.Snapshot) float64 {
	frequency := map[string]int{}
	peers := 0
	for _, peer := range snap.Identities {
		if peer.ID == identity.ID {
			continue
		}
		if peer.Attributes.Department != identity.Attributes.Department {
			continue
		}
		peers++
		for _, roleID := range peer.Roles {
			frequency[roleID]++
		}
	}
	if peers == 0 {
		return 0
	}

	rare := 0
	for _, roleID := range identity.Roles {
		if frequency[roleID] == 0 {
			rare++
		}
	}
	return math.Min(float64(rare)*rareRolePenalty, peerAnomalyCap)
}

// historicalChangeScore penalizes frequent recent privilege changes.
// Identities with at most one history entry score zero.
func (e *Evaluator) historicalChangeScore(identity domain.Identity) float64 {
	if len(identity.History) <= 1 {
		return 0
	}
	now := e.now()
	recent := 0
	for _, entry := range identity.History {
		if now.Sub(entry.Timestamp) <= recentWindow {
			recent++
		}
	}
	return math.Min(float64(recent)*changePenalty, historicalCap)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
