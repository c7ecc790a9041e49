package handler

import (
	"strings"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/orchestrator"
	dErrors "iam-sentinel/pkg/domain-errors"
)

// CreateIdentityRequest is the HTTP request body for POST /identities.
type CreateIdentityRequest struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	Attributes   domain.Attributes `json:"attributes"`
	Roles        []string          `json:"roles"`
	Entitlements []string          `json:"entitlements"`
}

// Validate checks the request before it reaches the orchestrator.
func (r *CreateIdentityRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	r.Attributes.Department = strings.TrimSpace(r.Attributes.Department)
	if r.Attributes.Department == "" {
		return dErrors.New(dErrors.CodeValidation, "attributes.department is required")
	}
	if r.Attributes.Seniority != "" && r.Attributes.Seniority.Index() < 0 {
		return dErrors.New(dErrors.CodeValidation, "attributes.seniority is not a known level")
	}
	return nil
}

// ToInput converts the request into the orchestrator's input shape.
func (r *CreateIdentityRequest) ToInput() orchestrator.CreateIdentityInput {
	return orchestrator.CreateIdentityInput{
		ID:           r.ID,
		Name:         r.Name,
		Attributes:   r.Attributes,
		Roles:        r.Roles,
		Entitlements: r.Entitlements,
	}
}

// AssignRoleRequest is the HTTP request body for POST /identities/{id}/roles.
type AssignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (r *AssignRoleRequest) Validate() error {
	r.RoleID = strings.TrimSpace(r.RoleID)
	if r.RoleID == "" {
		return dErrors.New(dErrors.CodeValidation, "role_id is required")
	}
	return nil
}

// SimulateAnomalyRequest is the HTTP request body for POST /simulate/anomaly.
type SimulateAnomalyRequest struct {
	IdentityID string `json:"identity_id"`
	RoleID     string `json:"role_id"`
}

func (r *SimulateAnomalyRequest) Validate() error {
	r.IdentityID = strings.TrimSpace(r.IdentityID)
	r.RoleID = strings.TrimSpace(r.RoleID)
	if r.IdentityID == "" {
		return dErrors.New(dErrors.CodeValidation, "identity_id is required")
	}
	if r.RoleID == "" {
		return dErrors.New(dErrors.CodeValidation, "role_id is required")
	}
	return nil
}

// RemediateRequest is the HTTP request body for POST /identities/{id}/remediate.
type RemediateRequest struct {
	Outcome string `json:"outcome"`

	parsedOutcome domain.DecisionOutcome
}

func (r *RemediateRequest) Validate() error {
	outcome := domain.DecisionOutcome(strings.TrimSpace(r.Outcome))
	if !domain.ValidOutcome(outcome) {
		return dErrors.New(dErrors.CodeValidation, "outcome is not a known decision outcome")
	}
	r.parsedOutcome = outcome
	return nil
}

// ParsedOutcome returns the outcome parsed during Validate.
func (r *RemediateRequest) ParsedOutcome() domain.DecisionOutcome {
	return r.parsedOutcome
}

// OverrideRequest is the HTTP request body for POST /identities/{id}/override.
type OverrideRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`

	parsedOutcome domain.DecisionOutcome
}

func (r *OverrideRequest) Validate() error {
	outcome := domain.DecisionOutcome(strings.TrimSpace(r.Outcome))
	if !domain.ValidOutcome(outcome) {
		return dErrors.New(dErrors.CodeValidation, "outcome is not a known decision outcome")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	r.parsedOutcome = outcome
	return nil
}

// ParsedOutcome returns the outcome parsed during Validate.
func (r *OverrideRequest) ParsedOutcome() domain.DecisionOutcome {
	return r.parsedOutcome
}
