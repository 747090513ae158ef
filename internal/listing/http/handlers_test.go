package listinghttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/export"
	"github.com/dashboard-baker/baker/internal/listing"
	"github.com/dashboard-baker/baker/internal/screens"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
)

type fakeAPI struct {
	mu          sync.Mutex
	seen        []url.Values
	calls       []string
	failActions bool
	gate        chan struct{}
	block       chan struct{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.seen = append(f.seen, r.URL.Query())
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	gate, block, fail := f.gate, f.block, f.failActions
	f.mu.Unlock()

	if gate != nil && r.URL.Query().Get("page") == "3" {
		close(block)
		<-gate
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/ctes/api/listar":
		page := r.URL.Query().Get("page")
		_, _ = fmt.Fprintf(w, `{"success":true,"data":[{"numero_cte":%s01,"destinatario_nome":"ACME","valor_total":150.5,"has_baixa":true}],"pagination":{"total":120,"pages":3,"current_page":%s,"per_page":50}}`, page, page)
	case "/ctes/api/excluir/101":
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"CTE excluído"}`))
	case "/analise-financeira/api/concentracao-clientes":
		_, _ = w.Write([]byte(`{"success":true,"concentracao_clientes":{"top_clientes":[{"posicao":1,"nome":"ACME","receita":1000,"percentual":40,"quantidade_ctes":2}]}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeAPI) last() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

type fixture struct {
	router http.Handler
	api    *fakeAPI
	sess   *shared.Session
	views  *listing.Registry
	srv    *httptest.Server
	gauge  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	defs, err := screens.LoadDefinitions("")
	require.NoError(t, err)
	client := backend.NewClient(srv.URL, time.Second)
	engine, err := view.NewEngine(nil)
	require.NoError(t, err)
	views := listing.NewRegistry(time.Hour, nil)

	sm := shared.NewSessionManager(nil, "", time.Hour, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	f := &fixture{api: api, sess: sess, views: views, srv: srv}
	h := NewHandler(nil, screens.NewCatalog(defs, client, nil, nil), views, engine, export.New(client, time.Second)).
		WithViewGauge(func(n int) { f.gauge = n }).
		WithRowActions(client)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithSession(r.Context(), sess)
			ctx = shared.ContextWithCSRFToken(ctx, "tok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	f.router = r
	return f
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fixture) do(method, target string, form url.Values, fragment bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if fragment {
		req.Header.Set(FragmentHeader, "1")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	rr := f.do(http.MethodGet, "/ctes", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	id := f.sess.Get("view:ctes")
	require.NotEmpty(t, id)
	return id
}

func TestPageOpensViewAndLoadsFirstPage(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/ctes", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "<strong>101</strong>")
	assert.Contains(t, body, "120 registro(s) encontrado(s) - Mostrando 1")
	assert.Contains(t, body, "Exibindo 1 a 50 de 120")
	assert.Contains(t, body, "/export/excel")
	assert.NotContains(t, body, "/export/json")
	assert.Equal(t, "1", f.api.last().Get("page"))
	assert.Equal(t, 1, f.gauge)

	id := f.sess.Get("view:ctes")
	rr = f.do(http.MethodGet, "/ctes", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, id, f.sess.Get("view:ctes"))
	assert.Equal(t, 1, f.views.Len(), "reloading replaces the previous view")
}

func TestPageReusesExistingView(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	hits := f.api.count()

	rr := f.do(http.MethodGet, "/ctes?view="+id, nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, hits, f.api.count())
	assert.Contains(t, rr.Body.String(), `data-view="`+id+`"`)
}

func TestPageLoadFragmentAndRedirect(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id

	rr := f.do(http.MethodGet, base+"/page/2", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<strong>201</strong>")
	assert.NotContains(t, rr.Body.String(), "<html")
	assert.Equal(t, "2", f.api.last().Get("page"))

	rr = f.do(http.MethodGet, base+"/page/3", nil, false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/ctes?view="+id, rr.Header().Get("Location"))

	rr = f.do(http.MethodGet, base+"/page/zero", nil, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFiltersValidateAndApply(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id

	rr := f.do(http.MethodPost, base+"/filters", url.Values{"data_inicio": {"31/12/2024"}, "search": {"acme"}}, true)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "use o formato AAAA-MM-DD")
	assert.Contains(t, rr.Body.String(), `value="31/12/2024"`)

	hits := f.api.count()
	rr = f.do(http.MethodPost, base+"/filters", url.Values{"status_baixa": {"sem_baixa"}, "search": {" acme "}}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, hits+1, f.api.count())
	last := f.api.last()
	assert.Equal(t, "sem_baixa", last.Get("status_baixa"))
	assert.Equal(t, "acme", last.Get("search"))
	assert.Equal(t, "1", last.Get("page"))

	rr = f.do(http.MethodPost, base+"/clear", url.Values{}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, f.api.last().Get("status_baixa"))
}

func TestBusyViewRefusesPageLoads(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id

	f.api.mu.Lock()
	f.api.gate = make(chan struct{})
	f.api.block = make(chan struct{})
	gate, block := f.api.gate, f.api.block
	f.api.mu.Unlock()

	done := make(chan int)
	go func() {
		done <- f.do(http.MethodGet, base+"/page/3", nil, true).Code
	}()
	<-block

	rr := f.do(http.MethodGet, base+"/page/2", nil, true)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Carregamento em andamento")

	close(gate)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestUnknownScreenAndView(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/ghost", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/ctes/views/nope/table", nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Visualização expirada")

	rr = f.do(http.MethodGet, "/ctes/views/nope/table", nil, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/ctes", rr.Header().Get("Location"))
}

func TestViewBelongsToItsScreen(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	rr := f.do(http.MethodGet, "/users/views/"+id+"/table", nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExportRedirectsAndDownloads(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id

	f.do(http.MethodPost, base+"/filters", url.Values{"status_processo": {"completo"}}, true)

	rr := f.do(http.MethodGet, base+"/export/excel", nil, false)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, f.srv.URL+"/ctes/api/download/excel?status_processo=completo", rr.Header().Get("Location"))

	rr = f.do(http.MethodGet, base+"/export/json", nil, false)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, base+"/export/xml", nil, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCloseDisposesView(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	rr := f.do(http.MethodDelete, "/ctes/views/"+id, nil, true)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, f.views.Len())
	assert.Empty(t, f.sess.Get("view:ctes"))
	assert.Equal(t, 0, f.gauge)

	_, err := f.views.Lookup(f.sess.Owner(), id)
	require.ErrorIs(t, err, listing.ErrViewNotFound)
}

func TestRowActionsPostBackAndReload(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/ctes", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	id := f.sess.Get("view:ctes")
	base := "/ctes/views/" + id

	body := rr.Body.String()
	target := base + "/rows/101/delete"
	assert.Contains(t, body, `href="`+f.srv.URL+`/ctes/api/buscar/101"`)
	assert.Contains(t, body, `method="post" action="`+target+`"`)
	assert.Contains(t, body, `data-confirm="Confirma a exclus`)
	assert.NotContains(t, body, `href="/ctes/api/`)

	rr = f.do(http.MethodPost, target, url.Values{}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<strong>101</strong>")
	calls := f.api.methods()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"DELETE /ctes/api/excluir/101", "GET /ctes/api/listar"}, calls[len(calls)-2:])

	rr = f.do(http.MethodPost, target, url.Values{}, false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/ctes?view="+id, rr.Header().Get("Location"))
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
}

func TestRowActionsOnlyForwardDisplayedControls(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id
	before := len(f.api.methods())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, base+"/rows/999/delete", url.Values{}, true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, base+"/rows/101/purge", url.Values{}, true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, base+"/rows/101/view", url.Values{}, true).Code)
	assert.Len(t, f.api.methods(), before)
}

func TestRowActionFailureIsReported(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	target := "/ctes/views/" + id + "/rows/101/delete"

	f.api.mu.Lock()
	f.api.failActions = true
	f.api.mu.Unlock()

	rr := f.do(http.MethodPost, target, url.Values{}, true)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Erro interno do servidor (500)")

	rr = f.do(http.MethodPost, target, url.Values{}, false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
	assert.Equal(t, "Erro interno do servidor (500)", flash.Message)
}

func TestTableCarriesLoadSequence(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	base := "/ctes/views/" + id

	rr := f.do(http.MethodGet, base+"/table", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-seq="1" data-state="loaded"`)

	rr = f.do(http.MethodGet, base+"/page/2", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-seq="2" data-state="loaded"`)
}

func TestPartialFilterPostKeepsOtherFilters(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/clients", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	id := f.sess.Get("view:clients")
	require.NotEmpty(t, id)
	assert.Equal(t, "180", f.api.last().Get("filtro_dias"))

	rr = f.do(http.MethodPost, "/clients/views/"+id+"/filters", url.Values{"filtro_cliente": {"acme"}}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	last := f.api.last()
	assert.Equal(t, "acme", last.Get("filtro_cliente"))
	assert.Equal(t, "180", last.Get("filtro_dias"))

	rr = f.do(http.MethodPost, "/clients/views/"+id+"/filters", url.Values{"filtro_cliente": {""}}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, f.api.last().Has("filtro_cliente"), "a blank posted field still unsets its filter")
}
