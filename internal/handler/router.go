package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/nicolasromanina/immo-backend-sub004/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы доверия.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/promoteur", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/appeals", h.SubmitAppeal)
		r.Get("/sanctions", h.GetOwnSanctions)
		r.Get("/score", h.GetOwnScore)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.adminMiddleware.Middleware)

		r.Post("/promoteurs/{id}/score/recalculate", h.RecalculateScore)
		r.Post("/score/recalculate", h.RecalculateAllScores)
		r.Get("/promoteurs/{id}/sanctions", h.GetPromoteurSanctions)

		r.Post("/sweeps/sanctions", h.RunSanctionSweep)
		r.Post("/sweeps/restrictions", h.RunRestrictionSweep)
		r.Post("/sweeps/badges", h.RunBadgeSweep)
		r.Post("/sweeps/appeals", h.RunAppealSweep)

		r.Post("/badges", h.CreateBadge)
		r.Post("/promoteurs/{id}/badges/check", h.CheckBadges)
		r.Delete("/promoteurs/{id}/badges/{slug}", h.RevokeBadge)

		r.Get("/appeals", h.ListAppeals)
		r.Get("/appeals/stats", h.GetAppealStats)
		r.Post("/appeals/{id}/assign", h.AssignAppeal)
		r.Post("/appeals/{id}/notes", h.AddAppealNote)
		r.Post("/appeals/{id}/escalate", h.EscalateAppeal)
		r.Post("/appeals/{id}/resolve", h.ResolveAppeal)

		r.Get("/score-configs/active", h.GetActiveScoreConfig)
		r.Post("/score-configs", h.SaveScoreConfig)
		r.Post("/score-configs/{id}/activate", h.ActivateScoreConfig)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
