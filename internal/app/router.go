package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	dashboardhttp "github.com/dashboard-baker/baker/internal/dashboard/http"
	listinghttp "github.com/dashboard-baker/baker/internal/listing/http"
	"github.com/dashboard-baker/baker/internal/observability"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
	"github.com/dashboard-baker/baker/jobs"
	"github.com/dashboard-baker/baker/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	ListingHandler   *listinghttp.Handler
	DashboardHandler *dashboardhttp.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
	// Health reports readiness of the Redis connection.
	Health func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Health, metrics and assets skip sessions and CSRF.
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Health != nil {
			if err := params.Health(req); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			sess := shared.SessionFromContext(req.Context())
			data := view.TemplateData{
				Title:       "Início",
				CSRFToken:   shared.CSRFTokenFromContext(req.Context()),
				Flash:       sess.PopFlash(),
				CurrentPath: "/",
			}
			if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
				params.Logger.Error("render home", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})

		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		// Screens are mounted last: /{screen} matches any remaining prefix.
		params.ListingHandler.MountRoutes(r)
	})

	return r
}

// Navigation lists the top-level links for the screens and boards.
func Navigation(screens []NavEntry, boards []NavEntry) []view.NavLink {
	links := make([]view.NavLink, 0, len(screens)+len(boards))
	for _, b := range boards {
		links = append(links, view.NavLink{Label: b.Title, Href: "/dashboard/" + b.Name})
	}
	for _, s := range screens {
		links = append(links, view.NavLink{Label: s.Title, Href: "/" + s.Name})
	}
	return links
}

// NavEntry names a screen or board for Navigation.
type NavEntry struct {
	Name  string
	Title string
}
