package domain

import "time"

// Seniority is the ordinal career level scale used for eligibility and risk
// alignment checks. Order matters: INTERN < JUNIOR < MID < SENIOR < EXECUTIVE.
type Seniority string

const (
	SeniorityIntern    Seniority = "INTERN"
	SeniorityJunior    Seniority = "JUNIOR"
	SeniorityMid       Seniority = "MID"
	SenioritySenior    Seniority = "SENIOR"
	SeniorityExecutive Seniority = "EXECUTIVE"
)

var seniorityOrder = []Seniority{
	SeniorityIntern,
	SeniorityJunior,
	SeniorityMid,
	SenioritySenior,
	SeniorityExecutive,
}

// Index returns the ordinal position of the seniority level, or -1 when the
// value is not one of the declared levels.
func (s Seniority) Index() int {
	for i, level := range seniorityOrder {
		if level == s {
			return i
		}
	}
	return -1
}

// EmploymentType distinguishes how an identity is engaged.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "FULL_TIME"
	EmploymentContractor EmploymentType = "CONTRACTOR"
	EmploymentIntern     EmploymentType = "INTERN"
)

// Attributes carries the HR-sourced facts about an identity that policies and
// risk scoring key off.
type Attributes struct {
	Department     string         `json:"department"`
	Title          string         `json:"title"`
	Seniority      Seniority      `json:"seniority"`
	EmploymentType EmploymentType `json:"employmentType"`
	Location       string         `json:"location"`
}

// StateSnapshot is one entry in an identity's append-only history. It records
// what the identity held at a point in time, not what it holds now.
type StateSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	Roles        []string  `json:"roles"`
	Entitlements []string  `json:"entitlements"`
	RiskScore    int       `json:"riskScore"`
	Status       string    `json:"status"`
}

// Identity is a principal (employee, contractor, intern) holding roles and
// entitlements. It is owned exclusively by the registry; mutation happens only
// through registry operations.
type Identity struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Attributes   Attributes      `json:"attributes"`
	Roles        []string        `json:"roles"`
	Entitlements []string        `json:"entitlements"`
	History      []StateSnapshot `json:"history"`
}

// Clone returns a deep copy so registry snapshots never share slices with the
// live state.
func (i Identity) Clone() Identity {
	out := i
	out.Roles = append([]string(nil), i.Roles...)
	out.Entitlements = append([]string(nil), i.Entitlements...)
	if i.History != nil {
		out.History = make([]StateSnapshot, len(i.History))
		for idx, h := range i.History {
			hc := h
			hc.Roles = append([]string(nil), h.Roles...)
			hc.Entitlements = append([]string(nil), h.Entitlements...)
			out.History[idx] = hc
		}
	}
	return out
}

// HasRole reports membership without resolving the role id.
func (i Identity) HasRole(roleID string) bool {
	for _, r := range i.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// ChangeEventType enumerates registry mutations recorded in the event log.
type ChangeEventType string

const (
	EventRoleAssigned        ChangeEventType = "ROLE_ASSIGNED"
	EventRoleRevoked         ChangeEventType = "ROLE_REVOKED"
	EventEntitlementAssigned ChangeEventType = "ENTITLEMENT_ASSIGNED"
	EventEntitlementRevoked  ChangeEventType = "ENTITLEMENT_REVOKED"
)

// ChangeEvent is an append-only record of a single registry mutation.
type ChangeEvent struct {
	Type          ChangeEventType `json:"type"`
	IdentityID    string          `json:"identityId"`
	RoleID        string          `json:"roleId,omitempty"`
	EntitlementID string          `json:"entitlementId,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
