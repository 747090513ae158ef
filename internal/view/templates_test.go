package view

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboard-baker/baker/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(nil)
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderInjectsNavigation(t *testing.T) {
	engine, err := NewEngine([]NavLink{{Label: "CTEs", Href: "/ctes"}, {Label: "Dashboard", Href: "/dashboard/main"}})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/home.html", TemplateData{
		Title:       "Início",
		CSRFToken:   "tok",
		CurrentPath: "/ctes",
		Flash:       &shared.FlashMessage{Kind: "success", Message: "Pronto"},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `<a href="/ctes" class="active">CTEs</a>`)
	assert.Contains(t, body, `content="tok"`)
	assert.Contains(t, body, "Pronto")
}

func TestRenderStatusWritesNothingOnError(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusTeapot, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Equal(t, 0, rr.Body.Len())
}

func TestErrorPageKeepsTrustedMarkup(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/error.html", TemplateData{Title: "Não encontrado", Data: template.HTML("<b>x</b>")})
	require.NoError(t, err)
	assert.Contains(t, rr.Body.String(), "<b>x</b>")
}
