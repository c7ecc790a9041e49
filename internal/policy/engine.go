// Package policy checks identities against the loaded policy set. Evaluation
// is pure (no mutation, no I/O) and violation ids are derived
// deterministically from policy id, identity id and a type-specific
// discriminator, so re-evaluating unchanged state yields identical ids.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/registry"
)

const (
	// leastPrivilegeRatio is how far above the peer average an identity's
	// domain coverage must sit before it counts as excess privilege.
	leastPrivilegeRatio = 1.8
	// leastPrivilegeFloor is the minimum absolute domain count for a finding.
	leastPrivilegeFloor = 3
	// leastPrivilegeCriticalAt escalates severity at this domain count.
	leastPrivilegeCriticalAt = 5
)

// Engine evaluates policies against registry snapshots.
type Engine struct{}

// New creates a policy engine.
func New() *Engine {
	return &Engine{}
}

// Evaluate runs every policy against one identity over a snapshot and returns
// the collected violations.
func (e *Engine) Evaluate(identity domain.Identity, snap registry.Snapshot, policies []domain.Policy) []domain.PolicyViolation {
	violations := []domain.PolicyViolation{}
	for _, p := range policies {
		switch p.Type {
		case domain.PolicyLeastPrivilege:
			violations = append(violations, evaluateLeastPrivilege(identity, snap, p)...)
		case domain.PolicySoD:
			violations = append(violations, evaluateSoD(identity, p)...)
		case domain.PolicyRoleEligibility:
			violations = append(violations, evaluateRoleEligibility(identity, snap, p)...)
		}
	}
	return violations
}

// evaluateLeastPrivilege flags identities whose reachable domain set is wide
// compared to peers sharing both department and seniority. No peers means no
// possible violation.
func evaluateLeastPrivilege(identity domain.Identity, snap registry.Snapshot, p domain.Policy) []domain.PolicyViolation {
	domains := domainSet(identity.Roles, snap)

	peerCount := 0
	peerDomainSum := 0
	for _, peer := range snap.Identities {
		if peer.ID == identity.ID {
			continue
		}
		if peer.Attributes.Department != identity.Attributes.Department ||
			peer.Attributes.Seniority != identity.Attributes.Seniority {
			continue
		}
		peerCount++
		peerDomainSum += len(domainSet(peer.Roles, snap))
	}
	if peerCount == 0 {
		return nil
	}

	avgPeerDomains := float64(peerDomainSum) / float64(peerCount)
	domainCount := len(domains)
	if float64(domainCount) <= avgPeerDomains*leastPrivilegeRatio || domainCount < leastPrivilegeFloor {
		return nil
	}

	severity := domain.SeverityHigh
	if domainCount >= leastPrivilegeCriticalAt {
		severity = domain.SeverityCritical
	}

	sorted := make([]string, 0, len(domains))
	for d := range domains {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	return []domain.PolicyViolation{{
		ID:         fmt.Sprintf("%s-lp-%s", p.ID, identity.ID),
		PolicyID:   p.ID,
		PolicyType: domain.PolicyLeastPrivilege,
		Description: "Identity has broader domain coverage than comparable peers, " +
			"indicating potential excess privileges.",
		Severity: severity,
		Details: map[string]any{
			"domainCount":        domainCount,
			"peerAverageDomains": avgPeerDomains,
			"domains":            sorted,
		},
	}}
}

// evaluateSoD emits one CRITICAL violation per conflicting role pair the
// identity holds in full.
func evaluateSoD(identity domain.Identity, p domain.Policy) []domain.PolicyViolation {
	var violations []domain.PolicyViolation
	for _, pair := range p.Config.ConflictingRoles {
		if len(pair) < 2 {
			continue
		}
		a, b := pair[0], pair[1]
		if !identity.HasRole(a) || !identity.HasRole(b) {
			continue
		}
		violations = append(violations, domain.PolicyViolation{
			ID:         fmt.Sprintf("%s-sod-%s-%s-%s", p.ID, identity.ID, a, b),
			PolicyID:   p.ID,
			PolicyType: domain.PolicySoD,
			Description: fmt.Sprintf(
				"Identity holds conflicting roles %s and %s, violating segregation of duties.", a, b),
			Severity: domain.SeverityCritical,
			Details: map[string]any{
				"roles": []string{a, b},
			},
		})
	}
	return violations
}

// evaluateRoleEligibility checks each rule covering a role the identity
// actually holds. All failed constraints for one rule collapse into a single
// violation; severity escalates to CRITICAL when the target role itself is
// CRITICAL.
func evaluateRoleEligibility(identity domain.Identity, snap registry.Snapshot, p domain.Policy) []domain.PolicyViolation {
	var violations []domain.PolicyViolation
	for _, rule := range p.Config.Rules {
		if !identity.HasRole(rule.RoleID) {
			continue
		}

		var issues []string
		if rule.MinSeniority != "" {
			if identity.Attributes.Seniority.Index() < rule.MinSeniority.Index() {
				issues = append(issues, fmt.Sprintf(
					"requires at least %s but identity is %s",
					rule.MinSeniority, identity.Attributes.Seniority))
			}
		}
		if len(rule.AllowedEmploymentTypes) > 0 {
			if !containsEmployment(rule.AllowedEmploymentTypes, identity.Attributes.EmploymentType) {
				issues = append(issues, fmt.Sprintf(
					"employment type %s not eligible (allowed: %s)",
					identity.Attributes.EmploymentType, joinEmployment(rule.AllowedEmploymentTypes)))
			}
		}
		if len(rule.AllowedDepartments) > 0 {
			if !containsString(rule.AllowedDepartments, identity.Attributes.Department) {
				issues = append(issues, fmt.Sprintf(
					"department %s not eligible (allowed: %s)",
					identity.Attributes.Department, strings.Join(rule.AllowedDepartments, ", ")))
			}
		}
		if len(issues) == 0 {
			continue
		}

		severity := domain.SeverityHigh
		if role, ok := snap.Role(rule.RoleID); ok && role.Sensitivity == domain.SensitivityCritical {
			severity = domain.SeverityCritical
		}

		violations = append(violations, domain.PolicyViolation{
			ID:         fmt.Sprintf("%s-elig-%s-%s", p.ID, identity.ID, rule.RoleID),
			PolicyID:   p.ID,
			PolicyType: domain.PolicyRoleEligibility,
			Description: fmt.Sprintf(
				"Identity does not meet eligibility requirements for role %s: %s",
				rule.RoleID, strings.Join(issues, "; ")),
			Severity: severity,
			Details: map[string]any{
				"roleId": rule.RoleID,
				"issues": issues,
			},
		})
	}
	return violations
}

// domainSet collects the domain tags reachable through resolved roles.
// Dangling role ids are skipped.
func domainSet(roleIDs []string, snap registry.Snapshot) map[string]struct{} {
	set := map[string]struct{}{}
	for _, role := range snap.ResolveRoles(roleIDs) {
		for _, d := range role.Domains {
			set[d] = struct{}{}
		}
	}
	return set
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func containsEmployment(list []domain.EmploymentType, target domain.EmploymentType) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func joinEmployment(list []domain.EmploymentType) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// MaxSeverity returns the strongest severity present, or "" for none.
func MaxSeverity(violations []domain.PolicyViolation) domain.Severity {
	max := domain.Severity("")
	rank := func(s domain.Severity) int {
		switch s {
		case domain.SeverityLow:
			return 1
		case domain.SeverityMedium:
			return 2
		case domain.SeverityHigh:
			return 3
		case domain.SeverityCritical:
			return 4
		default:
			return 0
		}
	}
	for _, v := range violations {
		if rank(v.Severity) > rank(max) {
			max = v.Severity
		}
	}
	return max
}

// HasSeverityAtLeast reports whether any violation is at or above the given
// severity.
func HasSeverityAtLeast(violations []domain.PolicyViolation, threshold domain.Severity) bool {
	rank := map[domain.Severity]int{
		domain.SeverityLow:      1,
		domain.SeverityMedium:   2,
		domain.SeverityHigh:     3,
		domain.SeverityCritical: 4,
	}
	for _, v := range violations {
		if rank[v.Severity] >= rank[threshold] {
			return true
		}
	}
	return false
}
