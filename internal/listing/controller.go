// Package listing implements the list-query controller shared by every list
// screen: filter state, paged fetches, stale-response suppression and the
// table and pagination views rendered from each page.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/backend"
)

// State is the display state of a list view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Failure is the inline error shown in place of the table body.
type Failure struct {
	Kind      backend.Kind
	Message   string
	RetryPage int
}

// View is a snapshot of what a list view currently displays.
type View struct {
	State      State
	Seq        uint64
	Page       int
	Filters    FilterState
	Table      TableView
	Pagination PaginationView
	Summary    string
	Failure    *Failure
	UpdatedAt  time.Time
}

// Fetcher issues the GET for a page. *backend.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, timeout time.Duration) (backend.Envelope, error)
}

// Observer receives one event per finished load.
type Observer interface {
	ObserveLoad(screen, outcome string, duration time.Duration)
}

// Load outcomes reported to the Observer.
const (
	OutcomeLoaded     = "loaded"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Driver is the type-erased controller surface used by hosts that serve many
// screens at once.
type Driver interface {
	Screen() string
	SetFilter(key string, value any)
	ApplyFilters(ctx context.Context) (View, error)
	ClearFilters(ctx context.Context) (View, error)
	Load(ctx context.Context, page int) (View, error)
	Retry(ctx context.Context) (View, error)
	View() View
	Filters() FilterState
	Busy() bool
	Dispose()
}

// Config wires a controller to its endpoint and renderer.
type Config[R any] struct {
	Screen        string
	Endpoint      string
	ItemsKeys     []string
	PageSize      int
	PageSizeParam string
	Timeout       time.Duration
	Defaults      map[string]any
	Fetcher       Fetcher
	Renderer      Renderer[R]
	Decode        func(gjson.Result) (R, error)
	Query         func(PageRequest) url.Values
	Logger        *slog.Logger
	Observer      Observer
	Now           func() time.Time
}

// Controller mediates between filter inputs, a remote list endpoint and the
// table it renders. Only the most recently issued load may change the view.
type Controller[R any] struct {
	cfg Config[R]

	mu       sync.Mutex
	filters  FilterState
	busy     bool
	seq      uint64
	cancel   context.CancelFunc
	lastPage int
	view     View
	disposed bool
}

// New validates cfg and returns an idle controller seeded with the defaults.
func New[R any](cfg Config[R]) (*Controller[R], error) {
	if cfg.Screen == "" {
		return nil, errors.New("listing: screen name required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("listing: %s: endpoint required", cfg.Screen)
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("listing: %s: fetcher required", cfg.Screen)
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("listing: %s: renderer required", cfg.Screen)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("listing: %s: page size must be positive", cfg.Screen)
	}
	if cfg.Decode == nil {
		cfg.Decode = decodeJSON[R]
	}
	if cfg.Query == nil {
		cfg.Query = PageRequest.Values
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Controller[R]{
		cfg:      cfg,
		filters:  NewFilterState(cfg.Defaults),
		lastPage: 1,
	}
	c.view = View{State: StateIdle, Page: 1, Filters: c.filters.Clone(), Table: TableView{Columns: cfg.Renderer.Columns()}}
	return c, nil
}

// Screen names the screen this controller drives.
func (c *Controller[R]) Screen() string { return c.cfg.Screen }

// SetFilter updates the filter state without fetching.
func (c *Controller[R]) SetFilter(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.filters.Set(key, value)
}

// Filters returns a copy of the current filter state.
func (c *Controller[R]) Filters() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// View returns the current display snapshot.
func (c *Controller[R]) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Busy reports whether a load is in flight.
func (c *Controller[R]) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// ApplyFilters loads page 1 with the current filters. Any load still in
// flight is cancelled and its result discarded.
func (c *Controller[R]) ApplyFilters(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return View{}, ErrDisposed
	}
	t := c.begin(ctx, 1)
	c.mu.Unlock()
	return c.run(t)
}

// ClearFilters restores the default filters and applies them.
func (c *Controller[R]) ClearFilters(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return View{}, ErrDisposed
	}
	c.filters = NewFilterState(c.cfg.Defaults)
	t := c.begin(ctx, 1)
	c.mu.Unlock()
	return c.run(t)
}

// Load fetches page with the current filters. It refuses with ErrBusy while
// another load is in flight; the returned view is then the current one.
func (c *Controller[R]) Load(ctx context.Context, page int) (View, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return View{}, ErrDisposed
	}
	if c.busy {
		v := c.view
		c.mu.Unlock()
		return v, ErrBusy
	}
	t := c.begin(ctx, page)
	c.mu.Unlock()
	return c.run(t)
}

// Retry repeats the last attempted page load.
func (c *Controller[R]) Retry(ctx context.Context) (View, error) {
	c.mu.Lock()
	page := c.lastPage
	c.mu.Unlock()
	return c.Load(ctx, page)
}

// Dispose cancels any in-flight load. The controller is unusable afterwards.
func (c *Controller[R]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.seq++
	c.busy = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

type ticket struct {
	seq     uint64
	ctx     context.Context
	request PageRequest
	started time.Time
}

// begin must be called with c.mu held.
func (c *Controller[R]) begin(ctx context.Context, page int) ticket {
	if page < 1 {
		page = 1
	}
	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	c.busy = true
	c.lastPage = page

	req := PageRequest{
		Page:          page,
		PageSize:      c.cfg.PageSize,
		PageSizeParam: c.cfg.PageSizeParam,
		Filters:       c.filters.Clone(),
	}
	c.view = View{
		State:      StateLoading,
		Seq:        c.seq,
		Page:       page,
		Filters:    req.Filters,
		Table:      loadingTable(c.cfg.Renderer.Columns()),
		Pagination: c.view.Pagination,
		Summary:    "Carregando...",
		UpdatedAt:  c.cfg.Now(),
	}
	return ticket{seq: c.seq, ctx: loadCtx, request: req, started: c.cfg.Now()}
}

func (c *Controller[R]) run(t ticket) (View, error) {
	result, err := c.fetch(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.seq != c.seq {
		c.observe(OutcomeSuperseded, t.started)
		return c.view, ErrSuperseded
	}
	c.busy = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err != nil {
		failure := &Failure{Kind: backend.KindOf(err), Message: failureMessage(err), RetryPage: t.request.Page}
		c.view = View{
			State:     StateFailed,
			Seq:       t.seq,
			Page:      t.request.Page,
			Filters:   t.request.Filters,
			Table:     failedTable(c.cfg.Renderer.Columns(), failure),
			Summary:   "0 registros encontrados",
			Failure:   failure,
			UpdatedAt: c.cfg.Now(),
		}
		c.cfg.Logger.Warn("list load failed",
			slog.String("screen", c.cfg.Screen),
			slog.Int("page", t.request.Page),
			slog.Uint64("seq", t.seq),
			slog.Any("error", err))
		c.observe(OutcomeFailed, t.started)
		return c.view, err
	}

	state := StateLoaded
	outcome := OutcomeLoaded
	if len(result.Items) == 0 {
		state = StateEmpty
		outcome = OutcomeEmpty
	}
	c.view = View{
		State:      state,
		Seq:        t.seq,
		Page:       result.Pagination.Page,
		Filters:    t.request.Filters,
		Table:      RenderPage(c.cfg.Renderer, result),
		Pagination: RenderPagination(result.Pagination),
		Summary:    Summary(result.Pagination, len(result.Items)),
		UpdatedAt:  c.cfg.Now(),
	}
	c.observe(outcome, t.started)
	return c.view, nil
}

func (c *Controller[R]) fetch(t ticket) (PageResult[R], error) {
	env, err := c.cfg.Fetcher.Get(t.ctx, c.cfg.Endpoint, c.cfg.Query(t.request), c.cfg.Timeout)
	if err != nil {
		return PageResult[R]{}, err
	}
	raw, err := env.Items(c.cfg.ItemsKeys...)
	if err != nil {
		return PageResult[R]{}, err
	}
	items := make([]R, 0, len(raw))
	for i, item := range raw {
		row, err := c.cfg.Decode(item)
		if err != nil {
			return PageResult[R]{}, &backend.Error{Kind: backend.KindMalformed, Detail: fmt.Sprintf("row %d", i), Err: err}
		}
		items = append(items, row)
	}
	return PageResult[R]{
		Items:      items,
		Pagination: paginationFrom(env.Pagination(c.cfg.PageSize), t.request, len(items)),
	}, nil
}

func (c *Controller[R]) observe(outcome string, started time.Time) {
	if c.cfg.Observer == nil {
		return
	}
	c.cfg.Observer.ObserveLoad(c.cfg.Screen, outcome, c.cfg.Now().Sub(started))
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Requisição cancelada"
	}
	return backend.UserMessage(err)
}

func decodeJSON[R any](item gjson.Result) (R, error) {
	var row R
	err := json.Unmarshal([]byte(item.Raw), &row)
	return row, err
}
