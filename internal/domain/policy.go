package domain

// PolicyType selects which compliance check a policy configures.
type PolicyType string

const (
	PolicyLeastPrivilege  PolicyType = "LEAST_PRIVILEGE"
	PolicySoD             PolicyType = "SOD"
	PolicyRoleEligibility PolicyType = "ROLE_ELIGIBILITY"
)

// EligibilityRule constrains who may hold a role. A rule applies only when the
// identity actually holds RoleID; each present constraint is checked
// independently.
type EligibilityRule struct {
	RoleID                 string           `json:"roleId"`
	MinSeniority           Seniority        `json:"minSeniority,omitempty"`
	AllowedEmploymentTypes []EmploymentType `json:"allowedEmploymentTypes,omitempty"`
	AllowedDepartments     []string         `json:"allowedDepartments,omitempty"`
}

// PolicyConfig holds the per-type configuration. Only the fields relevant to
// the policy's type are consulted.
type PolicyConfig struct {
	// ConflictingRoles lists mutually exclusive role id pairs (SOD).
	ConflictingRoles [][]string `json:"conflictingRoles,omitempty"`
	// Rules lists role eligibility constraints (ROLE_ELIGIBILITY).
	Rules []EligibilityRule `json:"rules,omitempty"`
}

// Policy is loaded once and immutable during evaluation.
type Policy struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Type   PolicyType   `json:"type"`
	Config PolicyConfig `json:"config"`
}

// Severity grades a violation. Ordinal: LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// PolicyViolation is one finding against one identity. The ID is derived
// deterministically from policy id, identity id and a type-specific
// discriminator so re-evaluation against unchanged inputs yields the same id.
type PolicyViolation struct {
	ID          string         `json:"id"`
	PolicyID    string         `json:"policyId"`
	PolicyType  PolicyType     `json:"policyType"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Details     map[string]any `json:"details"`
}
