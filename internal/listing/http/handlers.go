// Package listinghttp serves the list screens: one controller view per open
// page, addressed by its id and owned by the browser session.
package listinghttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/export"
	"github.com/dashboard-baker/baker/internal/listing"
	"github.com/dashboard-baker/baker/internal/platform/httpx"
	"github.com/dashboard-baker/baker/internal/screens"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
)

// FragmentHeader marks requests that expect an HTML fragment instead of a page.
const FragmentHeader = "X-Baker-Fragment"

var exportLabels = []struct {
	format export.Format
	label  string
}{
	{export.FormatExcel, "Excel"},
	{export.FormatCSV, "CSV"},
	{export.FormatPDF, "PDF"},
	{export.FormatJSON, "JSON"},
}

// RowBackend carries row actions to the backend. *backend.Client satisfies it.
type RowBackend interface {
	Send(ctx context.Context, method, path string, timeout time.Duration) (backend.Envelope, error)
	URL(path string, query url.Values) string
}

// Handler coordinates HTTP requests for every list screen.
type Handler struct {
	logger    *slog.Logger
	catalog   *screens.Catalog
	views     *listing.Registry
	templates *view.Engine
	exporter  *export.Exporter
	rows      RowBackend
	onViews   func(int)
}

// NewHandler constructs the list handler.
func NewHandler(logger *slog.Logger, catalog *screens.Catalog, views *listing.Registry, templates *view.Engine, exporter *export.Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		catalog:   catalog,
		views:     views,
		templates: templates,
		exporter:  exporter,
	}
}

// WithViewGauge reports the number of live views after every open and close.
func (h *Handler) WithViewGauge(fn func(int)) *Handler {
	h.onViews = fn
	return h
}

// WithRowActions enables the per-row controls. Without it rows render no
// actions.
func (h *Handler) WithRowActions(rows RowBackend) *Handler {
	h.rows = rows
	return h
}

// Page is the template payload of a list screen.
type Page struct {
	Screen  screens.Definition
	ViewID  string
	View    listing.View
	Base    string
	Values  map[string]string
	Errors  screens.InputErrors
	Exports []ExportLink
}

// ExportLink is one download button.
type ExportLink struct {
	Format string
	Label  string
	Href   string
}

type ctxKey int

const (
	screenKey ctxKey = iota
	viewKey
)

type openView struct {
	id     string
	driver listing.Driver
}

func (h *Handler) screenCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		def, err := h.catalog.Definitions().Lookup(chi.URLParam(r, "screen"))
		if err != nil {
			h.notFound(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), screenKey, def)))
	})
}

func (h *Handler) viewCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		def := screenFrom(r)
		id := chi.URLParam(r, "view")
		driver, err := h.views.Lookup(owner(r), id)
		if err != nil || driver.Screen() != def.Name {
			if isFragment(r) {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "Visualização expirada, recarregue a página")
				return
			}
			http.Redirect(w, r, "/"+def.Name, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), viewKey, openView{id: id, driver: driver})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	def := screenFrom(r)
	sess := shared.SessionFromContext(r.Context())
	key := "view:" + def.Name

	if id := r.URL.Query().Get("view"); id != "" {
		if driver, err := h.views.Lookup(sess.Owner(), id); err == nil && driver.Screen() == def.Name {
			h.renderPage(w, r, def, openView{id: id, driver: driver}, driver.View())
			return
		}
	}
	if prev := sess.Get(key); prev != "" {
		_ = h.views.Close(sess.Owner(), prev)
	}

	driver, err := h.catalog.Open(def.Name)
	if err != nil {
		h.logger.Error("open list view", slog.String("screen", def.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	id := h.views.Open(sess.Owner(), driver)
	sess.Set(key, id)
	h.reportViews()

	current, err := driver.Load(r.Context(), 1)
	if err != nil && !isDisplayed(err) {
		h.logger.Warn("initial list load", slog.String("screen", def.Name), slog.Any("error", err))
	}
	h.renderPage(w, r, def, openView{id: id, driver: driver}, current)
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	v := viewFrom(r)
	h.render(w, r, http.StatusOK, "partials/table.html", screenFrom(r), h.page(screenFrom(r), v, v.driver.View()))
}

func (h *Handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	values, err := screens.ParseInput(def, r.PostForm)
	var invalid screens.InputErrors
	if errors.As(err, &invalid) {
		current := v.driver.View()
		page := h.page(def, v, current)
		page.Values = posted(def, r.PostForm)
		page.Errors = invalid
		h.render(w, r, http.StatusUnprocessableEntity, "partials/screen.html", def, page)
		return
	}
	for key, value := range values {
		v.driver.SetFilter(key, value)
	}
	current, err := v.driver.ApplyFilters(r.Context())
	h.respond(w, r, "partials/screen.html", def, v, current, err)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	current, err := v.driver.ClearFilters(r.Context())
	h.respond(w, r, "partials/screen.html", def, v, current, err)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "página inválida")
		return
	}
	current, err := v.driver.Load(r.Context(), page)
	h.respond(w, r, "partials/table.html", def, v, current, err)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	current, err := v.driver.Retry(r.Context())
	h.respond(w, r, "partials/table.html", def, v, current, err)
}

// handleAction forwards a non-GET row action to the backend and reloads the
// page it was shown on. Only actions of rows currently displayed are accepted.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	current := v.driver.View()
	row, ok := current.Table.Row(chi.URLParam(r, "row"))
	if !ok || h.rows == nil {
		h.notFound(w, r)
		return
	}
	action, ok := row.Action(chi.URLParam(r, "action"))
	if !ok || action.Link() {
		h.notFound(w, r)
		return
	}
	if v.driver.Busy() {
		httpx.Problem(w, http.StatusConflict, "Conflict", "Carregamento em andamento, aguarde")
		return
	}

	logger := h.logger.With(slog.String("screen", def.Name), slog.String("row", row.ID), slog.String("action", action.Name))
	sess := shared.SessionFromContext(r.Context())
	if _, err := h.rows.Send(r.Context(), action.Method, action.Path, def.Timeout); err != nil {
		logger.Warn("row action failed", slog.Any("error", err))
		if isFragment(r) {
			httpx.RespondError(w, err)
			return
		}
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: backend.UserMessage(err)})
		http.Redirect(w, r, "/"+def.Name+"?view="+url.QueryEscape(v.id), http.StatusSeeOther)
		return
	}
	logger.Info("row action applied")
	if !isFragment(r) {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: action.Label + ": concluído"})
	}

	page := current.Page
	if page < 1 {
		page = 1
	}
	reloaded, err := v.driver.Load(r.Context(), page)
	h.respond(w, r, "partials/table.html", def, v, reloaded, err)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	sess := shared.SessionFromContext(r.Context())
	if err := h.views.Close(sess.Owner(), v.id); err != nil && !errors.Is(err, listing.ErrViewNotFound) {
		h.logger.Warn("close list view", slog.String("screen", def.Name), slog.Any("error", err))
	}
	if sess.Get("view:"+def.Name) == v.id {
		sess.Delete("view:" + def.Name)
	}
	h.reportViews()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	def, v := screenFrom(r), viewFrom(r)
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	filters := v.driver.Filters()
	if format.Redirect() {
		target, err := h.exporter.URL(def, format, filters)
		if err != nil {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	download, err := h.exporter.JSON(r.Context(), def, filters)
	switch {
	case errors.Is(err, export.ErrNotOffered):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case err != nil:
		h.logger.Warn("json export failed", slog.String("screen", def.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := download.Write(w); err != nil {
		h.logger.Warn("write export", slog.String("screen", def.Name), slog.Any("error", err))
	}
}

// respond renders the result of a controller operation. Backend failures are
// part of the view; only refusals change the status.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fragment string, def screens.Definition, v openView, current listing.View, err error) {
	switch {
	case errors.Is(err, listing.ErrBusy):
		httpx.Problem(w, http.StatusConflict, "Conflict", "Carregamento em andamento, aguarde")
		return
	case errors.Is(err, listing.ErrDisposed):
		h.notFound(w, r)
		return
	case err != nil && !isDisplayed(err):
		h.logger.Error("list operation", slog.String("screen", def.Name), slog.Any("error", err))
	}
	if !isFragment(r) {
		http.Redirect(w, r, "/"+def.Name+"?view="+url.QueryEscape(v.id), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, fragment, def, h.page(def, v, current))
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, def screens.Definition, v openView, current listing.View) {
	sess := shared.SessionFromContext(r.Context())
	data := view.TemplateData{
		Title:       def.Title,
		CSRFToken:   shared.CSRFTokenFromContext(r.Context()),
		Flash:       sess.PopFlash(),
		CurrentPath: "/" + def.Name,
		Data:        h.page(def, v, current),
	}
	if err := h.templates.Render(w, "pages/list.html", data); err != nil {
		h.renderFailed(w, def, err)
	}
}

// render writes name as a fragment, or the whole page for plain form posts.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, def screens.Definition, page Page) {
	if !isFragment(r) {
		name = "pages/list.html"
	}
	data := view.TemplateData{
		Title:       def.Title,
		CSRFToken:   shared.CSRFTokenFromContext(r.Context()),
		CurrentPath: "/" + def.Name,
		Data:        page,
	}
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		h.renderFailed(w, def, err)
	}
}

func (h *Handler) renderFailed(w http.ResponseWriter, def screens.Definition, err error) {
	h.logger.Error("render list screen", slog.String("screen", def.Name), slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) page(def screens.Definition, v openView, current listing.View) Page {
	base := "/" + def.Name + "/views/" + v.id
	current.Table.Rows = h.bindActions(base, current.Table.Rows)
	page := Page{
		Screen: def,
		ViewID: v.id,
		View:   current,
		Base:   base,
		Values: make(map[string]string, len(current.Filters)),
	}
	for key, value := range current.Filters {
		page.Values[key] = listing.Encode(value)
	}
	for _, e := range exportLabels {
		if _, ok := def.Exports[string(e.format)]; ok {
			page.Exports = append(page.Exports, ExportLink{
				Format: string(e.format),
				Label:  e.label,
				Href:   base + "/export/" + string(e.format),
			})
		}
	}
	return page
}

// bindActions resolves the target of every row action. Rows are copied since
// the view shares them with its controller.
func (h *Handler) bindActions(base string, rows []listing.RowView) []listing.RowView {
	if len(rows) == 0 {
		return rows
	}
	bound := make([]listing.RowView, len(rows))
	for i, row := range rows {
		if h.rows == nil {
			row.Actions = nil
			bound[i] = row
			continue
		}
		row.Actions = slices.Clone(row.Actions)
		for j := range row.Actions {
			a := &row.Actions[j]
			if a.Link() {
				a.Href = h.rows.URL(a.Path, nil)
			} else {
				a.Href = base + "/rows/" + url.PathEscape(row.ID) + "/" + url.PathEscape(a.Name)
			}
		}
		bound[i] = row
	}
	return bound
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	if isFragment(r) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	data := view.TemplateData{Title: "Página não encontrada", CurrentPath: r.URL.Path}
	if err := h.templates.RenderStatus(w, http.StatusNotFound, "pages/error.html", data); err != nil {
		http.NotFound(w, r)
	}
}

func (h *Handler) reportViews() {
	if h.onViews != nil {
		h.onViews(h.views.Len())
	}
}

// posted echoes the submitted values of declared filters back into the form.
func posted(def screens.Definition, form url.Values) map[string]string {
	values := make(map[string]string, len(def.Filters))
	for _, f := range def.Filters {
		values[f.Key] = form.Get(f.Key)
	}
	return values
}

// isDisplayed reports errors already rendered into the view.
func isDisplayed(err error) bool {
	var be *backend.Error
	return errors.As(err, &be) || errors.Is(err, listing.ErrSuperseded) || errors.Is(err, context.Canceled)
}

func isFragment(r *http.Request) bool {
	return r.Header.Get(FragmentHeader) == "1"
}

func owner(r *http.Request) string {
	return shared.SessionFromContext(r.Context()).Owner()
}

func screenFrom(r *http.Request) screens.Definition {
	def, _ := r.Context().Value(screenKey).(screens.Definition)
	return def
}

func viewFrom(r *http.Request) openView {
	v, _ := r.Context().Value(viewKey).(openView)
	return v
}
