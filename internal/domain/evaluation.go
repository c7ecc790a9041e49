package domain

import "time"

// RiskFactors breaks the composite risk score into its four sub-scores.
type RiskFactors struct {
	RoleSensitivityScore    float64 `json:"roleSensitivityScore"`
	SeniorityAlignmentScore float64 `json:"seniorityAlignmentScore"`
	PeerAnomalyScore        float64 `json:"peerAnomalyScore"`
	HistoricalChangeScore   float64 `json:"historicalChangeScore"`
}

// RiskEvaluationResult is the output of one risk evaluation. RiskScore is an
// integer clamped to [0,100].
type RiskEvaluationResult struct {
	IdentityID     string      `json:"identityId"`
	RiskScore      int         `json:"riskScore"`
	Factors        RiskFactors `json:"factors"`
	ContextSummary string      `json:"contextSummary"`
}

// DecisionOutcome enumerates the categorical access decisions.
type DecisionOutcome string

const (
	OutcomeApprove             DecisionOutcome = "APPROVE"
	OutcomeFlagForReview       DecisionOutcome = "FLAG_FOR_REVIEW"
	OutcomeRecommendRevocation DecisionOutcome = "RECOMMEND_REVOCATION"
	OutcomeAutoRemediate       DecisionOutcome = "AUTO_REMEDIATE"
)

// ValidOutcome reports whether s is one of the declared outcomes.
func ValidOutcome(s DecisionOutcome) bool {
	switch s {
	case OutcomeApprove, OutcomeFlagForReview, OutcomeRecommendRevocation, OutcomeAutoRemediate:
		return true
	}
	return false
}

// DecisionResult is the arbiter's verdict for one identity.
type DecisionResult struct {
	IdentityID string          `json:"identityId"`
	Outcome    DecisionOutcome `json:"outcome"`
	Rationale  string          `json:"rationale"`
	Confidence float64         `json:"confidence"`
	UsedLLM    bool            `json:"usedLLM"`
}

// RemediationType enumerates the recorded remediation actions.
type RemediationType string

const (
	RemediationRevokeAccess     RemediationType = "REVOKE_ACCESS"
	RemediationDowngradeRoles   RemediationType = "DOWNGRADE_ROLES"
	RemediationCreateReviewTask RemediationType = "CREATE_REVIEW_TASK"
	RemediationIgnored          RemediationType = "IGNORED"
)

// RemediationAction is one append-only entry in the remediation log. Never
// mutated or deleted once written.
type RemediationAction struct {
	ID              string          `json:"id"`
	IdentityID      string          `json:"identityId"`
	Type            RemediationType `json:"type"`
	DecisionOutcome DecisionOutcome `json:"decisionOutcome"`
	Timestamp       time.Time       `json:"timestamp"`
	Details         map[string]any  `json:"details"`
}

// AuditRecord ties together everything that went into one evaluation, plus a
// human-readable explanation. One per evaluation, append-only.
type AuditRecord struct {
	ID          string               `json:"id"`
	IdentityID  string               `json:"identityId"`
	Timestamp   time.Time            `json:"timestamp"`
	Decision    DecisionResult       `json:"decision"`
	Risk        RiskEvaluationResult `json:"risk"`
	Violations  []PolicyViolation    `json:"violations"`
	Explanation string               `json:"explanation"`
}
