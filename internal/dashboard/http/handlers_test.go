package dashboardhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/dashboard"
	"github.com/dashboard-baker/baker/internal/dashboard/svg"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
)

type api struct {
	mu   sync.Mutex
	hits map[string]int
	last map[string]url.Values
}

func (a *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.hits[r.URL.Path]++
	a.last[r.URL.Path] = r.URL.Query()
	a.mu.Unlock()
	switch r.URL.Path {
	case "/kpi":
		_, _ = w.Write([]byte(`{"success":true,"total":42}`))
	case "/fleet":
		_, _ = w.Write([]byte(`{"success":true,"total":3}`))
	case "/trend":
		_, _ = w.Write([]byte(`{"success":true,"labels":["jan","fev"],"values":[1,2]}`))
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (a *api) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

func (a *api) query(path string) url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last[path]
}

func definitions() []dashboard.Definition {
	kpi := func(env backend.Envelope) (dashboard.Panel, error) {
		return dashboard.Panel{Cards: []dashboard.Card{{Label: "Total", Value: env.Get("total").String()}}}, nil
	}
	trend := func(env backend.Envelope) (dashboard.Panel, error) {
		var labels []string
		for _, l := range env.Get("labels").Array() {
			labels = append(labels, l.String())
		}
		var values []float64
		for _, v := range env.Get("values").Array() {
			values = append(values, v.Float())
		}
		return dashboard.Panel{Chart: &dashboard.ChartSpec{
			Kind:   dashboard.ChartLine,
			Title:  "Tendência",
			Labels: labels,
			Series: []svg.Series{{Label: "Receita", Values: values}},
		}}, nil
	}
	return []dashboard.Definition{
		{
			Name:  "main",
			Title: "Visão geral",
			Regions: []dashboard.RegionSpec{
				{Name: "kpi", Title: "Indicadores", Source: dashboard.Source{Path: "/kpi", Shape: kpi}},
				{Name: "broken", Title: "Quebrado", Source: dashboard.Source{Path: "/broken", Shape: kpi}},
			},
		},
		{
			Name:        "financial",
			Title:       "Análise financeira",
			Defaults:    url.Values{"filtro_dias": {"180"}},
			ParseParams: dashboard.FinancialParams,
			Regions: []dashboard.RegionSpec{
				{Name: "trend", Title: "Tendência", Source: dashboard.Source{Path: "/trend", Shape: trend}},
			},
		},
		{
			Name:          "advanced",
			Title:         "Análise avançada",
			Defaults:      url.Values{"filtro_dias": {"180"}},
			ParseParams:   dashboard.AdvancedParams,
			VehicleFilter: true,
			Regions: []dashboard.RegionSpec{
				{Name: "fleet", Title: "Frota", Source: dashboard.Source{Path: "/fleet", Shape: kpi}},
			},
		},
	}
}

type fixture struct {
	router http.Handler
	api    *api
	hub    *dashboard.Hub
	sess   *shared.Session
	charts *dashboard.ChartPool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := &api{hits: map[string]int{}, last: map[string]url.Values{}}
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	charts := dashboard.NewChartPool(nil)
	hub, err := dashboard.NewHub(dashboard.HubConfig{
		Definitions: definitions(),
		Fetcher:     backend.NewClient(srv.URL, time.Second),
		Cache:       dashboard.NewCache(client, time.Minute, nil),
		Charts:      charts,
	})
	require.NoError(t, err)
	t.Cleanup(hub.Dispose)

	engine, err := view.NewEngine(nil)
	require.NoError(t, err)
	sm := shared.NewSessionManager(nil, "", time.Hour, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	})
	r.Route("/dashboard", NewHandler(nil, hub, engine).MountRoutes)
	return &fixture{router: r, api: a, hub: hub, sess: sess, charts: charts}
}

func (f *fixture) do(method, target string, fragment bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if fragment {
		req.Header.Set(FragmentHeader, "1")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestBoardRendersEveryRegionOnce(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/dashboard/main", false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<strong>42</strong>")
	assert.Contains(t, body, "Erro interno do servidor (500)")
	assert.Equal(t, 1, f.api.count("/kpi"))

	rr = f.do(http.MethodGet, "/dashboard/main", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, f.api.count("/kpi"), "a loaded shared board is served as is")
}

func TestBoardWithCustomParamsUsesShortLivedBoard(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/dashboard/financial", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<svg")
	assert.Equal(t, int64(1), f.charts.Live())

	rr = f.do(http.MethodGet, "/dashboard/financial?filtro_dias=30", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "30", f.api.query("/trend").Get("filtro_dias"))
	assert.Contains(t, rr.Body.String(), `action="/dashboard/financial/refresh?filtro_dias=30"`)
	assert.Equal(t, int64(1), f.charts.Live(), "the short-lived board released its chart")

	rr = f.do(http.MethodGet, "/dashboard/financial?filtro_dias=7", false)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "período inválido")
}

func TestRefreshRegionFragment(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/dashboard/main", false).Code)

	_, err := f.hub.Bump(context.Background())
	require.NoError(t, err)

	rr := f.do(http.MethodPost, "/dashboard/main/refresh?region=kpi", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `id="region-kpi"`)
	assert.Equal(t, 2, f.api.count("/kpi"))
	assert.Equal(t, 1, f.api.count("/broken"))

	rr = f.do(http.MethodPost, "/dashboard/main/refresh?region=ghost", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefreshBoardReportsJSON(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/dashboard/main/refresh", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var result RefreshResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "main", result.Board)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Regions, 2)

	rr = f.do(http.MethodPost, "/dashboard/main/refresh", false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/main", rr.Header().Get("Location"))

	rr = f.do(http.MethodPost, "/dashboard/ghost/refresh", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBumpInvalidatesCache(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/dashboard/cache/bump", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"version":1}`, rr.Body.String())

	rr = f.do(http.MethodPost, "/dashboard/cache/bump", false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Contains(t, flash.Message, "versão 2")
}

func TestIndexAndUnknownBoard(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/dashboard", false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/main", rr.Header().Get("Location"))

	rr = f.do(http.MethodGet, "/dashboard/ghost", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVehicleFilterOnlyOnBoardsThatTakeIt(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/dashboard/financial", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `name="filtro_veiculo"`)

	rr = f.do(http.MethodGet, "/dashboard/advanced?filtro_veiculo=abc1d23", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="filtro_veiculo" value="ABC1D23"`)
	assert.Equal(t, "ABC1D23", f.api.query("/fleet").Get("filtro_veiculo"))
}
