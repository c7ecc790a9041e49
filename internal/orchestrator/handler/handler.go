// Package handler is the HTTP surface over the orchestrator. It stays thin:
// decode, validate, delegate, encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/orchestrator"
	"iam-sentinel/pkg/platform/httputil"
)

// Service defines the orchestrator operations the HTTP layer depends on.
type Service interface {
	EvaluateIdentity(ctx context.Context, identityID string) (*orchestrator.Evaluation, error)
	EvaluateAll(ctx context.Context) ([]orchestrator.Evaluation, error)
	SimulateAbnormalRole(ctx context.Context, identityID, roleID string) (*orchestrator.Evaluation, error)

	CreateIdentity(input orchestrator.CreateIdentityInput) (domain.Identity, error)
	RemoveIdentity(identityID string) error
	Identity(identityID string) (domain.Identity, error)
	Identities() []domain.Identity
	Roles() []domain.Role
	Entitlements() []domain.Entitlement
	AssignRole(identityID, roleID string) (domain.Identity, error)

	Remediate(identityID string, outcome domain.DecisionOutcome) (*domain.RemediationAction, error)
	Override(identityID string, outcome domain.DecisionOutcome, reason string) (*domain.RemediationAction, error)

	Metrics() orchestrator.Counters
	RiskDistributionReport(ctx context.Context) (orchestrator.RiskDistribution, error)
	AuditLog(ctx context.Context) ([]domain.AuditRecord, error)
	AuditLogForIdentity(ctx context.Context, identityID string) ([]domain.AuditRecord, error)
	ExportAuditLog(ctx context.Context) ([]domain.AuditRecord, error)
	RemediationLog() []domain.RemediationAction
}

// Handler wires identity and evaluation endpoints to the orchestrator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read and evaluation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/identities", h.HandleListIdentities)
	r.Get("/identities/{identityID}", h.HandleGetIdentity)
	r.Post("/identities/{identityID}/evaluate", h.HandleEvaluate)

	r.Get("/roles", h.HandleListRoles)
	r.Get("/entitlements", h.HandleListEntitlements)

	r.Post("/evaluations", h.HandleEvaluateAll)
	r.Post("/simulate/anomaly", h.HandleSimulateAnomaly)

	r.Get("/audit", h.HandleAuditLog)
	r.Get("/audit/export", h.HandleAuditExport)
	r.Get("/audit/identities/{identityID}", h.HandleAuditLogForIdentity)
	r.Get("/remediations", h.HandleRemediationLog)
	r.Get("/metrics/summary", h.HandleMetricsSummary)
	r.Get("/metrics/risk-distribution", h.HandleRiskDistribution)
}

// RegisterOperator mounts the endpoints that mutate access state. The caller
// decides what authentication wraps them.
func (h *Handler) RegisterOperator(r chi.Router) {
	r.Post("/identities", h.HandleCreateIdentity)
	r.Delete("/identities/{identityID}", h.HandleRemoveIdentity)
	r.Post("/identities/{identityID}/roles", h.HandleAssignRole)
	r.Post("/identities/{identityID}/remediate", h.HandleRemediate)
	r.Post("/identities/{identityID}/override", h.HandleOverride)
}

// HandleCreateIdentity handles POST /identities.
func (h *Handler) HandleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[CreateIdentityRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.service.CreateIdentity(req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "identity created via api", "identity_id", identity.ID)
	httputil.WriteJSON(w, http.StatusCreated, identity)
}

// HandleListIdentities handles GET /identities.
func (h *Handler) HandleListIdentities(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Identities())
}

// HandleGetIdentity handles GET /identities/{identityID}.
func (h *Handler) HandleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.service.Identity(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

// HandleRemoveIdentity handles DELETE /identities/{identityID}.
func (h *Handler) HandleRemoveIdentity(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")
	if err := h.service.RemoveIdentity(identityID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "identity removed via api", "identity_id", identityID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssignRole handles POST /identities/{identityID}/roles.
func (h *Handler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[AssignRoleRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.service.AssignRole(chi.URLParam(r, "identityID"), req.RoleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

// HandleEvaluate handles POST /identities/{identityID}/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")
	start := time.Now()

	ev, err := h.service.EvaluateIdentity(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "identity evaluated",
		"identity_id", identityID,
		"risk_score", ev.Risk.RiskScore,
		"outcome", ev.Decision.Outcome,
		"anomaly", ev.Anomaly,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ev)
}

// HandleEvaluateAll handles POST /evaluations.
func (h *Handler) HandleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	evs, err := h.service.EvaluateAll(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, evs)
}

// HandleSimulateAnomaly handles POST /simulate/anomaly.
func (h *Handler) HandleSimulateAnomaly(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[SimulateAnomalyRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ev, err := h.service.SimulateAbnormalRole(r.Context(), req.IdentityID, req.RoleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "anomaly simulated",
		"identity_id", req.IdentityID,
		"role_id", req.RoleID,
		"risk_score", ev.Risk.RiskScore,
		"outcome", ev.Decision.Outcome,
	)
	httputil.WriteJSON(w, http.StatusOK, ev)
}

// HandleRemediate handles POST /identities/{identityID}/remediate.
func (h *Handler) HandleRemediate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[RemediateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	action, err := h.service.Remediate(chi.URLParam(r, "identityID"), req.ParsedOutcome())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if action == nil {
		// Outcomes like APPROVE require no remediation.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, action)
}

// HandleOverride handles POST /identities/{identityID}/override.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[OverrideRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	action, err := h.service.Override(chi.URLParam(r, "identityID"), req.ParsedOutcome(), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, action)
}

// HandleListRoles handles GET /roles.
func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Roles())
}

// HandleListEntitlements handles GET /entitlements.
func (h *Handler) HandleListEntitlements(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Entitlements())
}

// HandleAuditLog handles GET /audit.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.AuditLog(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleAuditExport handles GET /audit/export. The full trail is served as a
// downloadable attachment.
func (h *Handler) HandleAuditExport(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ExportAuditLog(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.json"`)
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleAuditLogForIdentity handles GET /audit/identities/{identityID}.
func (h *Handler) HandleAuditLogForIdentity(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.AuditLogForIdentity(r.Context(), chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleRemediationLog handles GET /remediations.
func (h *Handler) HandleRemediationLog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.RemediationLog())
}

// HandleMetricsSummary handles GET /metrics/summary.
func (h *Handler) HandleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromCounters(h.service.Metrics()))
}

// HandleRiskDistribution handles GET /metrics/risk-distribution.
func (h *Handler) HandleRiskDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := h.service.RiskDistributionReport(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dist)
}
