package listinghttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/dashboard-baker/baker/internal/shared"
)

// MountRoutes registers the list screen endpoints onto the router. Screens
// live at the root, so mount this after every fixed prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/{screen}", func(r chi.Router) {
		r.Use(h.screenCtx)
		r.Get("/", h.handlePage)
		r.Route("/views/{view}", func(r chi.Router) {
			r.Use(h.viewCtx)
			r.Get("/table", h.handleTable)
			r.Post("/filters", h.handleFilters)
			r.Post("/clear", h.handleClear)
			r.Get("/page/{page}", h.handleLoad)
			r.Post("/retry", h.handleRetry)
			r.Post("/rows/{row}/{action}", h.handleAction)
			r.Delete("/", h.handleClose)
			r.Post("/close", h.handleClose)
			r.With(limiter).Get("/export/{format}", h.handleExport)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if owner := shared.SessionFromContext(r.Context()).Owner(); owner != "" {
		return "session:" + owner, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
