// Package httpapi composes the public HTTP surface: the orchestrator API under
// /api, plus health and Prometheus scrape endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iam-sentinel/internal/orchestrator/handler"
	"iam-sentinel/pkg/platform/httputil"
	"iam-sentinel/pkg/platform/middleware/admin"
)

// NewRouter wires all public endpoints. When adminToken is non-empty the
// mutating operator endpoints require it; read and evaluation endpoints stay
// open either way.
func NewRouter(h *handler.Handler, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		h.Register(api)
		api.Group(func(op chi.Router) {
			if adminToken != "" {
				op.Use(admin.RequireAdminToken(adminToken, logger))
			}
			h.RegisterOperator(op)
		})
	})
	return r
}
