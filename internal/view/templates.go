package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/web"
)

// NavLink is one entry of the top navigation.
type NavLink struct {
	Label string
	Href  string
}

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	nav       []NavLink
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Nav         []NavLink
	Data        any
}

// NewEngine parses the embedded templates. nav is injected into every page.
func NewEngine(nav []NavLink) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
		"active": func(current, href string) bool {
			return current == href || (href != "/" && strings.HasPrefix(current, href+"/"))
		},
		"lower": strings.ToLower,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, nav: nav}, nil
}

// Render executes a named template with a 200 status.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes name into a buffer and writes it with status. Nothing
// is written when the template fails.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if data.Nav == nil {
		data.Nav = e.nav
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
