package listing

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashboard-baker/baker/internal/backend"
)

type testRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type testRenderer struct{}

func (testRenderer) Columns() []Column {
	return []Column{{Key: "id", Label: "ID"}, {Key: "name", Label: "Nome"}}
}

func (testRenderer) Row(r testRow) RowView {
	return RowView{
		ID:    fmt.Sprint(r.ID),
		Cells: []template.HTML{template.HTML(fmt.Sprint(r.ID)), template.HTML(template.HTMLEscapeString(r.Name))},
	}
}

func (testRenderer) EmptyMessage() string { return "Nenhum registro encontrado" }

type fakeFetcher struct {
	mu      sync.Mutex
	queries []url.Values
	gates   map[int]chan struct{}
	started chan int
	respond func(n int, q url.Values) (string, error)
}

func newFakeFetcher(respond func(n int, q url.Values) (string, error)) *fakeFetcher {
	return &fakeFetcher{gates: map[int]chan struct{}{}, started: make(chan int, 16), respond: respond}
}

func (f *fakeFetcher) gate(n int) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[n] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeFetcher) Get(ctx context.Context, path string, q url.Values, timeout time.Duration) (backend.Envelope, error) {
	f.mu.Lock()
	n := len(f.queries)
	f.queries = append(f.queries, q)
	gate := f.gates[n]
	f.mu.Unlock()
	f.started <- n
	if gate != nil {
		<-gate
	}
	body, err := f.respond(n, q)
	if err != nil {
		return backend.Envelope{}, err
	}
	return backend.ParseEnvelope([]byte(body))
}

func (f *fakeFetcher) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}

func pageJSON(rows, page, pages, total int) string {
	items := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		items = append(items, fmt.Sprintf(`{"id":%d,"name":"row %d"}`, i+1, i+1))
	}
	return fmt.Sprintf(`{"success":true,"data":[%s],"pagination":{"page":%d,"pages":%d,"total":%d,"has_next":%t,"has_prev":%t}}`,
		strings.Join(items, ","), page, pages, total, page < pages, page > 1)
}

func newTestController(t *testing.T, f Fetcher, defaults map[string]any) *Controller[testRow] {
	t.Helper()
	c, err := New(Config[testRow]{
		Screen:   "test",
		Endpoint: "/list",
		PageSize: 20,
		Timeout:  time.Second,
		Defaults: defaults,
		Fetcher:  f,
		Renderer: testRenderer{},
	})
	require.NoError(t, err)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config[testRow]{Screen: "x", Endpoint: "/x", PageSize: 10, Renderer: testRenderer{}})
	require.Error(t, err)
	_, err = New(Config[testRow]{Screen: "x", Endpoint: "/x", Fetcher: newFakeFetcher(nil), Renderer: testRenderer{}})
	require.Error(t, err)
}

func TestLoadOmitsUnsetFilters(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(1, 1, 1, 1), nil })
	c := newTestController(t, f, nil)
	c.SetFilter("search", "acme")
	c.SetFilter("status", nil)
	c.SetFilter("dateFrom", "")
	c.SetFilter("dateTo", "   ")
	c.SetFilter("clientId", int64(42))
	c.SetFilter("onlyOpen", false)

	_, err := c.Load(context.Background(), 3)
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 1)
	q := calls[0]
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "20", q.Get("per_page"))
	assert.Equal(t, "acme", q.Get("search"))
	assert.Equal(t, "42", q.Get("clientId"))
	assert.Equal(t, "false", q.Get("onlyOpen"))
	for _, key := range []string{"status", "dateFrom", "dateTo"} {
		_, present := q[key]
		assert.False(t, present, key)
	}
}

func TestSetFilterDoesNotFetch(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(0, 1, 0, 0), nil })
	c := newTestController(t, f, nil)
	c.SetFilter("search", "x")
	assert.Empty(t, f.calls())
	assert.Equal(t, StateIdle, c.View().State)
}

func TestApplyFiltersResetsToFirstPage(t *testing.T) {
	f := newFakeFetcher(func(n int, q url.Values) (string, error) { return pageJSON(20, 4, 10, 200), nil })
	c := newTestController(t, f, nil)
	_, err := c.Load(context.Background(), 4)
	require.NoError(t, err)

	c.SetFilter("search", "acme")
	_, err = c.ApplyFilters(context.Background())
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "1", calls[1].Get("page"))
	assert.Equal(t, "acme", calls[1].Get("search"))
}

func TestClearFiltersIssuesSingleFirstPageRequest(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(5, 1, 1, 5), nil })
	c := newTestController(t, f, map[string]any{"filtro_dias": 180})
	c.SetFilter("search", "x")
	_, err := c.Load(context.Background(), 4)
	require.NoError(t, err)

	_, err = c.ClearFilters(context.Background())
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 2)
	last := calls[1]
	assert.Equal(t, "1", last.Get("page"))
	_, hasSearch := last["search"]
	assert.False(t, hasSearch)
	assert.Equal(t, "180", last.Get("filtro_dias"))
}

func TestPaginationWindow(t *testing.T) {
	cases := []struct {
		page, pages int
		want        []int
	}{
		{3, 10, []int{1, 2, 3, 4, 5}},
		{9, 10, []int{7, 8, 9, 10}},
		{1, 2, []int{1, 2}},
		{5, 10, []int{3, 4, 5, 6, 7}},
	}
	for _, tc := range cases {
		p := Pagination{Page: tc.page, TotalPages: tc.pages, HasNext: tc.page < tc.pages, HasPrev: tc.page > 1}
		assert.Equal(t, tc.want, p.Window(), "page %d of %d", tc.page, tc.pages)
	}
}

func TestPaginationHiddenForSinglePage(t *testing.T) {
	for _, pages := range []int{0, 1} {
		view := RenderPagination(Pagination{Page: 1, TotalPages: pages, TotalItems: 500})
		assert.False(t, view.Visible)
		assert.Empty(t, view.Pages)
	}
}

func TestRenderPaginationDisablesEdges(t *testing.T) {
	view := RenderPagination(NewPagination(1, 20, 41))
	require.True(t, view.Visible)
	assert.True(t, view.Prev.Disabled)
	assert.False(t, view.Next.Disabled)
	assert.True(t, view.Pages[0].Active)
	assert.Equal(t, "Exibindo 1 a 20 de 41", view.Range)
}

func TestNewPaginationCeil(t *testing.T) {
	p := NewPagination(2, 20, 98)
	assert.Equal(t, 5, p.TotalPages)
	first, last := p.Range()
	assert.Equal(t, 21, first)
	assert.Equal(t, 40, last)
	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
}

func TestEmptyResultRendersEmptyState(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) {
		return `{"success":true,"data":[],"pagination":{"page":1,"pages":0,"total":0,"has_next":false,"has_prev":false}}`, nil
	})
	c := newTestController(t, f, nil)
	view, err := c.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, view.State)
	assert.True(t, view.Table.Empty)
	assert.Empty(t, view.Table.Rows)
	assert.Equal(t, "Nenhum registro encontrado", view.Table.EmptyMessage)
	assert.False(t, view.Pagination.Visible)
}

func TestScenarioSecondPageOfSearch(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) {
		body := strings.Replace(pageJSON(18, 2, 5, 98), `"page":2`, `"current_page":2`, 1)
		return body, nil
	})
	c := newTestController(t, f, nil)
	c.SetFilter("search", "acme")
	view, err := c.Load(context.Background(), 2)
	require.NoError(t, err)

	q := f.calls()[0]
	assert.Equal(t, "page=2&per_page=20&search=acme", q.Encode())

	assert.Equal(t, StateLoaded, view.State)
	assert.Len(t, view.Table.Rows, 18)
	assert.Equal(t, "1", view.Table.Rows[0].ID)
	assert.Equal(t, "18", view.Table.Rows[17].ID)
	require.True(t, view.Pagination.Visible)
	assert.False(t, view.Pagination.Prev.Disabled)
	assert.False(t, view.Pagination.Next.Disabled)
	labels := make([]string, 0, len(view.Pagination.Pages))
	for _, p := range view.Pagination.Pages {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, labels)
	assert.Equal(t, "98 registro(s) encontrado(s) - Mostrando 18", view.Summary)
}

func TestFailureRendersErrorAndAllowsRetry(t *testing.T) {
	f := newFakeFetcher(func(n int, q url.Values) (string, error) {
		if n == 0 {
			return "", &backend.Error{Kind: backend.KindTransport, Err: errors.New("connection refused")}
		}
		return pageJSON(2, 1, 1, 2), nil
	})
	c := newTestController(t, f, nil)

	view, err := c.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, StateFailed, view.State)
	require.NotNil(t, view.Table.Failure)
	assert.Equal(t, "Erro de conexão - verifique se o servidor está rodando", view.Failure.Message)
	assert.Empty(t, view.Table.Rows)
	assert.False(t, c.Busy())

	view, err = c.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, view.State)
	assert.Len(t, f.calls(), 2)
}

func TestApplicationAndMalformedErrorsShareFailedState(t *testing.T) {
	bodies := []string{
		`{"success":false,"error":"sem permissão"}`,
		`{"success":true,"data":"oops"}`,
		`{"success":true,"data":[{"id":"not-a-number"}]}`,
	}
	for _, body := range bodies {
		f := newFakeFetcher(func(int, url.Values) (string, error) {
			env, err := backend.ParseEnvelope([]byte(body))
			if err != nil {
				return "", err
			}
			if !env.Success() {
				return "", &backend.Error{Kind: backend.KindApplication, Detail: env.ErrorText()}
			}
			return body, nil
		})
		c := newTestController(t, f, nil)
		view, err := c.Load(context.Background(), 1)
		require.Error(t, err)
		assert.Equal(t, StateFailed, view.State, body)
		assert.False(t, c.Busy())
	}
}

func TestLoadRejectedWhileBusy(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(1, 1, 1, 1), nil })
	release := f.gate(0)
	c := newTestController(t, f, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), 1)
		done <- err
	}()
	<-f.started
	assert.True(t, c.Busy())
	assert.Equal(t, StateLoading, c.View().State)
	assert.True(t, c.View().Table.Loading)

	_, err := c.Load(context.Background(), 2)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, f.calls(), 1)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
}

func TestOlderSlowResponseNeverOverwritesNewer(t *testing.T) {
	f := newFakeFetcher(func(n int, q url.Values) (string, error) {
		if q.Get("search") == "old" {
			return pageJSON(3, 1, 1, 3), nil
		}
		return pageJSON(7, 1, 1, 7), nil
	})
	slow := f.gate(0)
	c := newTestController(t, f, nil)

	c.SetFilter("search", "old")
	oldDone := make(chan error, 1)
	go func() {
		_, err := c.ApplyFilters(context.Background())
		oldDone <- err
	}()
	<-f.started

	c.SetFilter("search", "new")
	view, err := c.ApplyFilters(context.Background())
	require.NoError(t, err)
	assert.Len(t, view.Table.Rows, 7)

	close(slow)
	assert.ErrorIs(t, <-oldDone, ErrSuperseded)

	current := c.View()
	assert.Len(t, current.Table.Rows, 7)
	assert.Equal(t, "new", current.Filters["search"])
	assert.False(t, c.Busy())
}

func TestDisposeCancelsAndRejects(t *testing.T) {
	f := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(1, 1, 1, 1), nil })
	release := f.gate(0)
	c := newTestController(t, f, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), 1)
		done <- err
	}()
	<-f.started
	c.Dispose()
	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	_, err := c.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = c.ApplyFilters(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestFilterStateEqualAndClone(t *testing.T) {
	a := NewFilterState(map[string]any{"a": 1, "b": "", "c": nil})
	assert.Equal(t, []string{"a"}, a.Keys())
	b := a.Clone()
	b.Set("d", 2.5)
	assert.False(t, a.Equal(b))
	assert.Equal(t, "2.5", b.Values().Get("d"))
	b.Set("d", nil)
	assert.True(t, a.Equal(b))
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveLoad(screen, outcome string, d time.Duration) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func TestObserverSeesOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	f := newFakeFetcher(func(n int, q url.Values) (string, error) {
		if n == 1 {
			return pageJSON(0, 1, 0, 0), nil
		}
		return pageJSON(1, 1, 1, 1), nil
	})
	c, err := New(Config[testRow]{Screen: "test", Endpoint: "/list", PageSize: 10, Fetcher: f, Renderer: testRenderer{}, Observer: obs})
	require.NoError(t, err)
	_, _ = c.Load(context.Background(), 1)
	_, _ = c.Load(context.Background(), 1)
	assert.Equal(t, []string{OutcomeLoaded, OutcomeEmpty}, obs.outcomes)
}
