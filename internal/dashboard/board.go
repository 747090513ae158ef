// Package dashboard aggregates independent metric and chart regions into
// boards. Each region fetches its own source concurrently; a failing region
// shows its own placeholder without affecting the others.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dashboard-baker/baker/internal/backend"
)

var (
	ErrDisposed      = errors.New("dashboard: board disposed")
	ErrUnknownBoard  = errors.New("dashboard: unknown board")
	ErrUnknownRegion = errors.New("dashboard: unknown region")
)

// Fetcher issues backend GETs. *backend.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, timeout time.Duration) (backend.Envelope, error)
}

// Observer receives one event per finished region refresh.
type Observer interface {
	ObserveRegion(board, region, status string, duration time.Duration)
}

// Source is one metric endpoint and how to turn its answer into a panel.
type Source struct {
	Path    string
	Timeout time.Duration
	// Params derives the query from the board parameters. Nil sends them
	// unchanged.
	Params func(url.Values) url.Values
	Shape  func(backend.Envelope) (Panel, error)
}

func (s Source) query(params url.Values) url.Values {
	if s.Params == nil {
		return cloneValues(params)
	}
	return s.Params(cloneValues(params))
}

// RegionSpec declares a region of a board.
type RegionSpec struct {
	Name   string
	Title  string
	Source Source
}

// Status is the display state of a region.
type Status string

const (
	StatusPending Status = "pending"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// RegionView is a snapshot of what a region displays.
type RegionView struct {
	Name      string
	Title     string
	Status    Status
	Panel     Panel
	Chart     template.HTML
	Error     string
	Kind      backend.Kind
	Cached    bool
	UpdatedAt time.Time
}

// RegionReport describes one finished region refresh.
type RegionReport struct {
	Region   string
	Status   Status
	Duration time.Duration
	Cached   bool
	Shared   bool
	Skipped  bool
	Err      error
}

// Report summarises a board refresh.
type Report struct {
	Board    string
	Regions  []RegionReport
	Duration time.Duration
}

// Failed counts the regions that ended in the failed state.
func (r Report) Failed() int {
	n := 0
	for _, rr := range r.Regions {
		if rr.Status == StatusFailed {
			n++
		}
	}
	return n
}

// region owns at most one live chart at a time.
type region struct {
	spec     RegionSpec
	inflight atomic.Int32

	mu    sync.Mutex
	seq   uint64
	chart *Chart
	view  RegionView
}

// BoardConfig wires a board to its dependencies.
type BoardConfig struct {
	Name     string
	Title    string
	Regions  []RegionSpec
	Params   url.Values
	Fetcher  Fetcher
	Cache    *Cache
	Charts   *ChartPool
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Board is a set of regions refreshed together with shared parameters.
type Board struct {
	name    string
	title   string
	params  url.Values
	regions []*region
	byName  map[string]*region

	fetcher  Fetcher
	cache    *Cache
	charts   *ChartPool
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	flights  singleflight.Group

	disposed atomic.Bool
}

// NewBoard validates cfg and returns a board whose regions are pending.
func NewBoard(cfg BoardConfig) (*Board, error) {
	if cfg.Name == "" {
		return nil, errors.New("dashboard: board name required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("dashboard: %s: fetcher required", cfg.Name)
	}
	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("dashboard: %s: no regions", cfg.Name)
	}
	if cfg.Charts == nil {
		cfg.Charts = NewChartPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Board{
		name:     cfg.Name,
		title:    cfg.Title,
		params:   cloneValues(cfg.Params),
		byName:   make(map[string]*region, len(cfg.Regions)),
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		charts:   cfg.Charts,
		observer: cfg.Observer,
		logger:   cfg.Logger.With(slog.String("board", cfg.Name)),
		now:      cfg.Now,
	}
	for _, spec := range cfg.Regions {
		if spec.Name == "" || spec.Source.Path == "" || spec.Source.Shape == nil {
			return nil, fmt.Errorf("dashboard: %s: region %q incomplete", cfg.Name, spec.Name)
		}
		if _, dup := b.byName[spec.Name]; dup {
			return nil, fmt.Errorf("dashboard: %s: duplicate region %q", cfg.Name, spec.Name)
		}
		r := &region{spec: spec, view: RegionView{Name: spec.Name, Title: spec.Title, Status: StatusPending}}
		b.regions = append(b.regions, r)
		b.byName[spec.Name] = r
	}
	return b, nil
}

// Name returns the board name.
func (b *Board) Name() string { return b.name }

// Title returns the board heading.
func (b *Board) Title() string { return b.title }

// Params returns a copy of the board parameters.
func (b *Board) Params() url.Values { return cloneValues(b.params) }

// Regions lists the region names in display order.
func (b *Board) Regions() []string {
	names := make([]string, 0, len(b.regions))
	for _, r := range b.regions {
		names = append(names, r.spec.Name)
	}
	return names
}

// Refresh fetches every region concurrently and returns once all of them
// reached a terminal state.
func (b *Board) Refresh(ctx context.Context) (Report, error) {
	return b.refresh(ctx, false)
}

// RefreshRegion refreshes a single region. A call for a region whose fetch
// is already in flight joins that fetch.
func (b *Board) RefreshRegion(ctx context.Context, name string) (RegionReport, error) {
	if b.disposed.Load() {
		return RegionReport{}, ErrDisposed
	}
	r, ok := b.byName[name]
	if !ok {
		return RegionReport{}, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return b.refreshRegion(ctx, r), nil
}

// Run refreshes the board every interval until ctx is done. A tick skips
// regions whose previous fetch is still in flight.
func (b *Board) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.disposed.Load() {
				return
			}
			report, err := b.refresh(ctx, true)
			if err != nil {
				return
			}
			if failed := report.Failed(); failed > 0 {
				b.logger.Warn("dashboard auto-refresh had failures", slog.Int("failed", failed), slog.Duration("duration", report.Duration))
			}
		}
	}
}

func (b *Board) refresh(ctx context.Context, skipInflight bool) (Report, error) {
	if b.disposed.Load() {
		return Report{}, ErrDisposed
	}
	started := b.now()
	reports := make([]RegionReport, len(b.regions))
	// Plain Group: one region failing must not cancel its siblings.
	var g errgroup.Group
	for i, r := range b.regions {
		if skipInflight && r.inflight.Load() > 0 {
			reports[i] = RegionReport{Region: r.spec.Name, Status: StatusLoading, Skipped: true}
			continue
		}
		g.Go(func() error {
			reports[i] = b.refreshRegion(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Board: b.name, Regions: reports, Duration: b.now().Sub(started)}, nil
}

type fetchResult struct {
	env    backend.Envelope
	cached bool
}

func (b *Board) refreshRegion(ctx context.Context, r *region) RegionReport {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	r.mu.Lock()
	r.seq++
	seq := r.seq
	if r.view.Status == StatusPending {
		r.view.Status = StatusLoading
	}
	r.mu.Unlock()

	started := b.now()
	query := r.spec.Source.query(b.params)
	res, shared, err := b.load(ctx, r.spec.Source, query)
	var panel Panel
	if err == nil {
		panel, err = r.spec.Source.Shape(res.env)
		if err != nil {
			err = &backend.Error{Kind: backend.KindMalformed, Detail: r.spec.Name, Err: err}
		}
	}

	report := RegionReport{Region: r.spec.Name, Cached: res.cached, Shared: shared, Err: err, Duration: b.now().Sub(started)}
	report.Status = b.apply(r, seq, panel, res.cached, err)
	if b.observer != nil {
		b.observer.ObserveRegion(b.name, r.spec.Name, string(report.Status), report.Duration)
	}
	return report
}

// apply installs the outcome of refresh seq unless a newer refresh of the
// same region started meanwhile or the board was disposed.
func (b *Board) apply(r *region, seq uint64, panel Panel, cached bool, err error) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq || b.disposed.Load() {
		return r.view.Status
	}

	r.chart.Dispose()
	r.chart = nil

	view := RegionView{Name: r.spec.Name, Title: r.spec.Title, UpdatedAt: b.now(), Cached: cached}
	if err == nil && panel.Chart != nil {
		chart, renderErr := b.charts.Render(*panel.Chart)
		if renderErr != nil {
			err = &backend.Error{Kind: backend.KindMalformed, Detail: "chart " + r.spec.Name, Err: renderErr}
		} else {
			r.chart = chart
			view.Chart = chart.HTML()
		}
	}
	if err != nil {
		view.Status = StatusFailed
		view.Kind = backend.KindOf(err)
		view.Error = regionMessage(err)
		view.Chart = ""
		b.logger.Warn("dashboard region failed", slog.String("region", r.spec.Name), slog.Any("error", err))
	} else {
		view.Status = StatusReady
		view.Panel = panel
	}
	r.view = view
	return view.Status
}

// load fetches the source once for every concurrent caller with the same
// query. The shared fetch is detached from the first caller's cancellation;
// each caller still stops waiting when its own ctx ends.
func (b *Board) load(ctx context.Context, src Source, query url.Values) (fetchResult, bool, error) {
	key := src.Path + "?" + query.Encode()
	ch := b.flights.DoChan(key, func() (any, error) {
		return b.fetch(context.WithoutCancel(ctx), src, query)
	})
	select {
	case <-ctx.Done():
		return fetchResult{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fetchResult{}, res.Shared, res.Err
		}
		return res.Val.(fetchResult), res.Shared, nil
	}
}

func (b *Board) fetch(ctx context.Context, src Source, query url.Values) (fetchResult, error) {
	key, err := b.cache.BuildKey(ctx, "dashboard", src.Path, query.Encode())
	if err != nil {
		b.logger.Warn("dashboard cache key failed", slog.String("path", src.Path), slog.Any("error", err))
		key = ""
	}
	payload, hit, err := b.cache.FetchJSON(ctx, key, func(ctx context.Context) ([]byte, error) {
		env, err := b.fetcher.Get(ctx, src.Path, query, src.Timeout)
		if err != nil {
			return nil, err
		}
		return env.Raw(), nil
	})
	if err != nil {
		return fetchResult{}, err
	}
	env, err := backend.ParseEnvelope(payload)
	if err != nil {
		return fetchResult{}, err
	}
	return fetchResult{env: env, cached: hit}, nil
}

// View returns the snapshot of one region.
func (b *Board) View(name string) (RegionView, error) {
	r, ok := b.byName[name]
	if !ok {
		return RegionView{}, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view, nil
}

// Snapshot returns every region view in display order.
func (b *Board) Snapshot() []RegionView {
	out := make([]RegionView, 0, len(b.regions))
	for _, r := range b.regions {
		r.mu.Lock()
		out = append(out, r.view)
		r.mu.Unlock()
	}
	return out
}

// Loaded reports whether every region has reached a terminal state at least
// once.
func (b *Board) Loaded() bool {
	for _, r := range b.regions {
		r.mu.Lock()
		status := r.view.Status
		r.mu.Unlock()
		if status != StatusReady && status != StatusFailed {
			return false
		}
	}
	return true
}

// Dispose releases every region chart. Refreshes still in flight are
// discarded when they finish.
func (b *Board) Dispose() {
	if !b.disposed.CompareAndSwap(false, true) {
		return
	}
	for _, r := range b.regions {
		r.mu.Lock()
		r.seq++
		r.chart.Dispose()
		r.chart = nil
		r.mu.Unlock()
	}
}

func regionMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Atualização cancelada"
	}
	return backend.UserMessage(err)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
