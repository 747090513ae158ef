package dashboardhttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the board endpoints under /dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleIndex)
	r.Post("/cache/bump", h.handleBump)
	r.Get("/{board}", h.handleBoard)
	r.Post("/{board}/refresh", h.handleRefresh)
}
