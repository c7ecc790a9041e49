package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"iam-sentinel/internal/audit"
	"iam-sentinel/internal/decision"
	"iam-sentinel/internal/orchestrator"
	"iam-sentinel/internal/policy"
	"iam-sentinel/internal/registry"
	"iam-sentinel/internal/remediation"
	"iam-sentinel/internal/risk"
	"iam-sentinel/internal/seed"
	"iam-sentinel/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := registry.New()
	seed.Populate(reg)

	orch := orchestrator.New(
		reg,
		risk.New(),
		policy.New(),
		seed.Policies(),
		decision.New(),
		audit.NewRecorder(audit.NewMemoryStore()),
		remediation.New(reg, seed.BaselineProvider()),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(orch, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterOperator(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != nil {
		req = testutil.NewJSONRequest(t, method, path, payload)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	return testutil.DoRequest(router, req)
}

func TestListIdentities(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/identities", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var identities []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&identities); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(identities) != 4 {
		t.Fatalf("expected 4 seeded identities, got %d", len(identities))
	}
}

func TestCreateIdentityValidation(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/identities", map[string]any{
		"attributes": map[string]string{"department": "Engineering"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/identities", map[string]any{
		"name": "Erin New",
		"attributes": map[string]string{
			"department": "Engineering",
			"seniority":  "WIZARD",
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown seniority, got %d", rec.Code)
	}
}

func TestCreateAndFetchIdentity(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/identities", map[string]any{
		"name": "Erin New",
		"attributes": map[string]string{
			"department":     "Engineering",
			"seniority":      "JUNIOR",
			"employmentType": "FULL_TIME",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating identity, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id in response")
	}

	rec = doJSON(t, router, http.MethodGet, "/identities/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching created identity, got %d", rec.Code)
	}
}

func TestRemoveIdentity(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/identities/engineer-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/identities/engineer-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestEvaluateIdentity(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/identities/intern-1/evaluate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var ev struct {
		Risk struct {
			RiskScore int `json:"riskScore"`
		} `json:"risk"`
		Decision struct {
			Outcome string `json:"outcome"`
		} `json:"decision"`
		Anomaly bool `json:"anomaly"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ev); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if ev.Decision.Outcome != "APPROVE" {
		t.Fatalf("expected APPROVE for seeded intern, got %s", ev.Decision.Outcome)
	}
	if ev.Anomaly {
		t.Fatalf("expected no anomaly for seeded intern")
	}

	rec = doJSON(t, router, http.MethodPost, "/identities/ghost/evaluate", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown identity, got %d", rec.Code)
	}
}

func TestSimulateAnomalyAndRemediate(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/simulate/anomaly", map[string]string{
		"identity_id": "intern-1",
		"role_id":     "prod-db-admin",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var ev struct {
		Decision struct {
			Outcome string `json:"outcome"`
		} `json:"decision"`
		Anomaly bool `json:"anomaly"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ev); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !ev.Anomaly {
		t.Fatalf("expected anomaly after granting prod-db-admin to intern")
	}
	if ev.Decision.Outcome != "AUTO_REMEDIATE" {
		t.Fatalf("expected AUTO_REMEDIATE, got %s", ev.Decision.Outcome)
	}

	rec = doJSON(t, router, http.MethodPost, "/identities/intern-1/remediate", map[string]string{
		"outcome": ev.Decision.Outcome,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 remediating, got %d: %s", rec.Code, rec.Body.String())
	}

	var action struct {
		Type    string `json:"type"`
		Details struct {
			RevokedRoles []string `json:"revokedRoles"`
		} `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&action); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if action.Type != "REVOKE_ACCESS" {
		t.Fatalf("expected REVOKE_ACCESS action, got %s", action.Type)
	}
	if len(action.Details.RevokedRoles) != 1 || action.Details.RevokedRoles[0] != "prod-db-admin" {
		t.Fatalf("expected revoked roles [prod-db-admin], got %v", action.Details.RevokedRoles)
	}
}

func TestRemediateApproveReturnsNoContent(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/identities/intern-1/remediate", map[string]string{
		"outcome": "APPROVE",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for APPROVE, got %d", rec.Code)
	}
}

func TestOverrideRequiresReason(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/identities/intern-1/override", map[string]string{
		"outcome": "RECOMMEND_REVOCATION",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/identities/intern-1/override", map[string]string{
		"outcome": "RECOMMEND_REVOCATION",
		"reason":  "approved by security review",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var action struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&action); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if action.Type != "IGNORED" {
		t.Fatalf("expected IGNORED action, got %s", action.Type)
	}
}

func TestAuditAndMetricsEndpoints(t *testing.T) {
	router := newRouter(t)

	if rec := doJSON(t, router, http.MethodPost, "/identities/intern-1/evaluate", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 evaluating, got %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/audit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /audit, got %d", rec.Code)
	}
	var records []struct {
		IdentityID string `json:"identityId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("failed to decode audit log: %v", err)
	}
	if len(records) != 1 || records[0].IdentityID != "intern-1" {
		t.Fatalf("expected one audit record for intern-1, got %+v", records)
	}

	rec = doJSON(t, router, http.MethodGet, "/audit/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /audit/export, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Fatalf("expected attachment disposition on export")
	}

	rec = doJSON(t, router, http.MethodGet, "/metrics/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics/summary, got %d", rec.Code)
	}
	summary := testutil.UnmarshalResponse[MetricsSummaryResponse](t, rec)
	if summary.TotalDecisions != 1 {
		t.Fatalf("expected 1 decision counted, got %d", summary.TotalDecisions)
	}

	rec = doJSON(t, router, http.MethodGet, "/metrics/risk-distribution", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics/risk-distribution, got %d", rec.Code)
	}
	var dist struct {
		Low    int `json:"low"`
		Medium int `json:"medium"`
		High   int `json:"high"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&dist); err != nil {
		t.Fatalf("failed to decode distribution: %v", err)
	}
	if dist.Low+dist.Medium+dist.High != 4 {
		t.Fatalf("expected 4 identities in distribution, got %+v", dist)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/roles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /roles, got %d", rec.Code)
	}
	var roles []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&roles); err != nil {
		t.Fatalf("failed to decode roles: %v", err)
	}
	if len(roles) != 5 {
		t.Fatalf("expected 5 seeded roles, got %d", len(roles))
	}

	rec = doJSON(t, router, http.MethodGet, "/entitlements", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /entitlements, got %d", rec.Code)
	}
}
