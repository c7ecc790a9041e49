// Package seed provides the demo population the server boots with: a handful
// of identities, the role and entitlement catalog, and one policy of each
// type. The seed also acts as the baseline provisioning source remediation
// consults when deciding which roles are excess.
package seed

import (
	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/registry"
	"iam-sentinel/internal/remediation"
)

// Roles returns the role catalog.
func Roles() []domain.Role {
	return []domain.Role{
		{
			ID:          "dev-read",
			Name:        "Dev Repo Reader",
			Description: "Read access to development repositories and tooling.",
			Sensitivity: domain.SensitivityLow,
			Domains:     []string{"DEV_CODE_REPO"},
		},
		{
			ID:          "software-engineer",
			Name:        "Software Engineer",
			Description: "Standard engineering role with access to development and staging.",
			Sensitivity: domain.SensitivityMedium,
			Domains:     []string{"DEV_CODE_REPO", "STAGING_APP"},
		},
		{
			ID:          "prod-db-admin",
			Name:        "Production Database Admin",
			Description: "Full administrative access to production databases.",
			Sensitivity: domain.SensitivityCritical,
			Domains:     []string{"PRODUCTION_DB", "CUSTOMER_DATA"},
		},
		{
			ID:          "fin-analyst",
			Name:        "Finance Analyst",
			Description: "Read/write access to financial systems.",
			Sensitivity: domain.SensitivityHigh,
			Domains:     []string{"FINANCE_SYSTEM"},
		},
		{
			ID:          "fin-approver",
			Name:        "Finance Approver",
			Description: "Approves financial transactions.",
			Sensitivity: domain.SensitivityHigh,
			Domains:     []string{"FINANCE_SYSTEM"},
		},
	}
}

// Entitlements returns the entitlement catalog.
func Entitlements() []domain.Entitlement {
	return []domain.Entitlement{
		{
			ID:          "ent-dev-read",
			Name:        "Dev Repo Read",
			Description: "Read access to development repositories.",
			Category:    "GIT",
			Resource:    "dev-repo",
		},
		{
			ID:          "ent-prod-db-superuser",
			Name:        "Prod DB Superuser",
			Description: "Superuser on production database.",
			Category:    "DATABASE",
			Resource:    "prod-db",
		},
	}
}

// Identities returns the seed population. intern-1 starts with only the
// low-sensitivity dev-read role.
func Identities() []domain.Identity {
	return []domain.Identity{
		{
			ID:   "intern-1",
			Name: "Alice Intern",
			Attributes: domain.Attributes{
				Department:     "Engineering",
				Title:          "Software Engineering Intern",
				Seniority:      domain.SeniorityIntern,
				EmploymentType: domain.EmploymentIntern,
				Location:       "NYC",
			},
			Roles:        []string{"dev-read"},
			Entitlements: []string{"ent-dev-read"},
		},
		{
			ID:   "engineer-1",
			Name: "Bob Engineer",
			Attributes: domain.Attributes{
				Department:     "Engineering",
				Title:          "Software Engineer",
				Seniority:      domain.SeniorityMid,
				EmploymentType: domain.EmploymentFullTime,
				Location:       "NYC",
			},
			Roles:        []string{"software-engineer"},
			Entitlements: []string{"ent-dev-read"},
		},
		{
			ID:   "dba-1",
			Name: "Carol DBA",
			Attributes: domain.Attributes{
				Department:     "Platform",
				Title:          "Senior Database Administrator",
				Seniority:      domain.SenioritySenior,
				EmploymentType: domain.EmploymentFullTime,
				Location:       "NYC",
			},
			Roles:        []string{"prod-db-admin"},
			Entitlements: []string{"ent-prod-db-superuser"},
		},
		{
			ID:   "finance-1",
			Name: "Dave Finance",
			Attributes: domain.Attributes{
				Department:     "Finance",
				Title:          "Finance Analyst",
				Seniority:      domain.SeniorityMid,
				EmploymentType: domain.EmploymentFullTime,
				Location:       "Remote",
			},
			Roles:        []string{"fin-analyst"},
			Entitlements: []string{},
		},
	}
}

// Policies returns one policy of each supported type.
func Policies() []domain.Policy {
	return []domain.Policy{
		{
			ID:   "policy-least-privilege",
			Name: "Least Privilege by Domain Spread",
			Type: domain.PolicyLeastPrivilege,
		},
		{
			ID:   "policy-sod-finance",
			Name: "Finance SoD: Analyst vs Approver",
			Type: domain.PolicySoD,
			Config: domain.PolicyConfig{
				ConflictingRoles: [][]string{{"fin-analyst", "fin-approver"}},
			},
		},
		{
			ID:   "policy-role-eligibility",
			Name: "Role Eligibility by Seniority and Employment Type",
			Type: domain.PolicyRoleEligibility,
			Config: domain.PolicyConfig{
				Rules: []domain.EligibilityRule{{
					RoleID:                 "prod-db-admin",
					MinSeniority:           domain.SenioritySenior,
					AllowedEmploymentTypes: []domain.EmploymentType{domain.EmploymentFullTime},
					AllowedDepartments:     []string{"Platform", "Security"},
				}},
			},
		},
	}
}

// Populate loads the full seed data set into a registry.
func Populate(reg *registry.Registry) {
	for _, r := range Roles() {
		reg.UpsertRole(r)
	}
	for _, e := range Entitlements() {
		reg.UpsertEntitlement(e)
	}
	for _, i := range Identities() {
		reg.UpsertIdentity(i)
	}
}

// BaselineProvider resolves originally provisioned access from the seed data.
// Identities created after boot have no baseline, so all of their roles are
// revocable.
func BaselineProvider() remediation.BaselineProvider {
	baselines := make(map[string]domain.Identity, len(Identities()))
	for _, identity := range Identities() {
		baselines[identity.ID] = identity
	}
	return remediation.BaselineFunc(func(identityID string) ([]string, []string, bool) {
		identity, ok := baselines[identityID]
		if !ok {
			return nil, nil, false
		}
		return identity.Roles, identity.Entitlements, true
	})
}
