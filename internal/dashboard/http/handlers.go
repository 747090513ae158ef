// Package dashboardhttp serves the metric boards.
package dashboardhttp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dashboard-baker/baker/internal/dashboard"
	"github.com/dashboard-baker/baker/internal/platform/httpx"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
)

// FragmentHeader marks requests that expect an HTML fragment or JSON.
const FragmentHeader = "X-Baker-Fragment"

var dayOptions = []string{"15", "30", "90", "180", "360"}

// Handler coordinates HTTP requests for the boards.
type Handler struct {
	logger      *slog.Logger
	hub         *dashboard.Hub
	templates   *view.Engine
	defaultName string
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, hub *dashboard.Hub, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, hub: hub, templates: templates, defaultName: "main"}
}

// Page is the template payload of a board.
type Page struct {
	Name       string
	Title      string
	Regions    []dashboard.RegionView
	Params     url.Values
	Form       bool
	Vehicle    bool
	DayOptions []string
	RefreshURL string
	Error      string
}

// RefreshResult is the JSON answer of a fragment refresh without a region.
type RefreshResult struct {
	Board    string          `json:"board"`
	Duration string          `json:"duration"`
	Failed   int             `json:"failed"`
	Regions  []RegionOutcome `json:"regions"`
}

// RegionOutcome is one region of a RefreshResult.
type RegionOutcome struct {
	Region  string `json:"region"`
	Status  string `json:"status"`
	Cached  bool   `json:"cached"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard/"+h.defaultName, http.StatusSeeOther)
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "board")
	def, err := h.hub.Definition(name)
	if err != nil {
		h.notFound(w, r)
		return
	}

	status := http.StatusOK
	var problem string
	board, owned, err := h.hub.Resolve(name, r.URL.Query())
	if err != nil {
		// Invalid parameters fall back to the shared board.
		status = http.StatusUnprocessableEntity
		problem = err.Error()
		board, owned, err = h.hub.Resolve(name, nil)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if owned {
		defer board.Dispose()
	}
	if owned || !board.Loaded() {
		if _, err := board.Refresh(r.Context()); err != nil {
			h.logger.Warn("board refresh", slog.String("board", name), slog.Any("error", err))
		}
	}

	page := Page{
		Name:       board.Name(),
		Title:      board.Title(),
		Regions:    board.Snapshot(),
		Params:     board.Params(),
		Form:       def.ParseParams != nil,
		Vehicle:    def.VehicleFilter,
		DayOptions: dayOptions,
		RefreshURL: refreshURL(name, board.Params(), owned),
		Error:      problem,
	}
	sess := shared.SessionFromContext(r.Context())
	data := view.TemplateData{
		Title:       page.Title,
		CSRFToken:   shared.CSRFTokenFromContext(r.Context()),
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        page,
	}
	if err := h.templates.RenderStatus(w, status, "pages/board.html", data); err != nil {
		h.logger.Error("render board", slog.String("board", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "board")
	query := r.URL.Query()
	region := query.Get("region")
	query.Del("region")

	board, owned, err := h.hub.Resolve(name, query)
	switch {
	case errors.Is(err, dashboard.ErrUnknownBoard):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, name))
		return
	case err != nil:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if owned {
		defer board.Dispose()
	}

	if region != "" {
		if _, err := board.RefreshRegion(r.Context(), region); err != nil {
			if errors.Is(err, dashboard.ErrUnknownRegion) {
				httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, region))
				return
			}
			h.logger.Warn("region refresh", slog.String("board", name), slog.String("region", region), slog.Any("error", err))
		}
		if isFragment(r) {
			rv, _ := board.View(region)
			if err := h.templates.Render(w, "partials/region.html", view.TemplateData{Data: rv}); err != nil {
				h.logger.Error("render region", slog.String("region", region), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}
		h.backToBoard(w, r, name, board.Params(), owned)
		return
	}

	report, err := board.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("board refresh", slog.String("board", name), slog.Any("error", err))
	}
	if isFragment(r) {
		httpx.JSON(w, http.StatusOK, resultOf(report))
		return
	}
	h.backToBoard(w, r, name, board.Params(), owned)
}

func (h *Handler) handleBump(w http.ResponseWriter, r *http.Request) {
	version, err := h.hub.Bump(r.Context())
	if err != nil {
		h.logger.Error("dashboard cache bump", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "cache indisponível")
		return
	}
	if isFragment(r) {
		httpx.JSON(w, http.StatusOK, map[string]int64{"version": version})
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: fmt.Sprintf("Cache de métricas invalidado (versão %d)", version)})
	}
	http.Redirect(w, r, "/dashboard/"+h.defaultName, http.StatusSeeOther)
}

func (h *Handler) backToBoard(w http.ResponseWriter, r *http.Request, name string, params url.Values, owned bool) {
	target := "/dashboard/" + name
	if owned && len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	data := view.TemplateData{Title: "Painel não encontrado", CurrentPath: r.URL.Path}
	if err := h.templates.RenderStatus(w, http.StatusNotFound, "pages/error.html", data); err != nil {
		http.NotFound(w, r)
	}
}

func refreshURL(name string, params url.Values, owned bool) string {
	target := "/dashboard/" + name + "/refresh"
	if owned && len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

func resultOf(report dashboard.Report) RefreshResult {
	out := RefreshResult{
		Board:    report.Board,
		Duration: report.Duration.String(),
		Failed:   report.Failed(),
		Regions:  make([]RegionOutcome, 0, len(report.Regions)),
	}
	for _, rr := range report.Regions {
		outcome := RegionOutcome{Region: rr.Region, Status: string(rr.Status), Cached: rr.Cached, Skipped: rr.Skipped}
		if rr.Err != nil {
			outcome.Error = rr.Err.Error()
		}
		out.Regions = append(out.Regions, outcome)
	}
	return out
}

func isFragment(r *http.Request) bool {
	return r.Header.Get(FragmentHeader) == "1"
}
