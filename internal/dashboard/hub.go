package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"
)

// HubConfig carries the dependencies shared by every board.
type HubConfig struct {
	Definitions []Definition
	Fetcher     Fetcher
	Cache       *Cache
	Charts      *ChartPool
	Observer    Observer
	Logger      *slog.Logger
}

// Hub owns one shared board per definition, built with the default
// parameters and kept fresh by Run, and builds short-lived boards for
// requests that carry their own parameters.
type Hub struct {
	cfg    HubConfig
	defs   map[string]Definition
	shared map[string]*Board
}

// NewHub builds the shared boards.
func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Definitions == nil {
		cfg.Definitions = Definitions()
	}
	if cfg.Charts == nil {
		cfg.Charts = NewChartPool(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Hub{
		cfg:    cfg,
		defs:   make(map[string]Definition, len(cfg.Definitions)),
		shared: make(map[string]*Board, len(cfg.Definitions)),
	}
	for _, def := range cfg.Definitions {
		h.defs[def.Name] = def
		board, err := h.build(def, def.Defaults)
		if err != nil {
			return nil, err
		}
		h.shared[def.Name] = board
	}
	return h, nil
}

// Names lists the board names.
func (h *Hub) Names() []string {
	names := make([]string, 0, len(h.defs))
	for name := range h.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition returns the definition of name.
func (h *Hub) Definition(name string) (Definition, error) {
	def, ok := h.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownBoard, name)
	}
	return def, nil
}

// Board returns the shared board for name.
func (h *Hub) Board(name string) (*Board, error) {
	board, ok := h.shared[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBoard, name)
	}
	return board, nil
}

// Resolve returns the board to serve for input: the shared board when the
// parsed parameters equal the defaults, otherwise a fresh board the caller
// must Dispose. owned reports which case applies.
func (h *Hub) Resolve(name string, input url.Values) (board *Board, owned bool, err error) {
	def, err := h.Definition(name)
	if err != nil {
		return nil, false, err
	}
	if def.ParseParams == nil {
		return h.shared[name], false, nil
	}
	params, err := def.ParseParams(input)
	if err != nil {
		return nil, false, err
	}
	if params.Encode() == def.Defaults.Encode() {
		return h.shared[name], false, nil
	}
	board, err = h.build(def, params)
	if err != nil {
		return nil, false, err
	}
	return board, true, nil
}

func (h *Hub) build(def Definition, params url.Values) (*Board, error) {
	return NewBoard(BoardConfig{
		Name:     def.Name,
		Title:    def.Title,
		Regions:  def.Regions,
		Params:   params,
		Fetcher:  h.cfg.Fetcher,
		Cache:    h.cfg.Cache,
		Charts:   h.cfg.Charts,
		Observer: h.cfg.Observer,
		Logger:   h.cfg.Logger,
	})
}

// RefreshAll refreshes every shared board concurrently.
func (h *Hub) RefreshAll(ctx context.Context) []Report {
	names := h.Names()
	reports := make([]Report, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := h.shared[name].Refresh(ctx)
			if err != nil {
				report = Report{Board: name}
			}
			reports[i] = report
		}()
	}
	wg.Wait()
	return reports
}

// Run keeps the shared boards refreshed every interval until ctx is done,
// then disposes them.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, board := range h.shared {
		wg.Add(1)
		go func() {
			defer wg.Done()
			board.Run(ctx, interval)
		}()
	}
	wg.Wait()
	h.Dispose()
}

// Dispose releases the charts of every shared board.
func (h *Hub) Dispose() {
	for _, board := range h.shared {
		board.Dispose()
	}
}

// Charts exposes the chart pool shared by the boards.
func (h *Hub) Charts() *ChartPool { return h.cfg.Charts }

// Bump invalidates every cached payload.
func (h *Hub) Bump(ctx context.Context) (int64, error) {
	return h.cfg.Cache.Bump(ctx)
}
