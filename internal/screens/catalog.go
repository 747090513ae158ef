package screens

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/listing"
)

// Catalog opens list controllers for the defined screens.
type Catalog struct {
	defs     *Definitions
	fetcher  listing.Fetcher
	logger   *slog.Logger
	observer listing.Observer
}

// NewCatalog binds definitions to the fetcher every controller will use.
func NewCatalog(defs *Definitions, fetcher listing.Fetcher, logger *slog.Logger, observer listing.Observer) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{defs: defs, fetcher: fetcher, logger: logger, observer: observer}
}

// Definitions exposes the screen definitions.
func (c *Catalog) Definitions() *Definitions { return c.defs }

// Open builds a fresh controller for the named screen.
func (c *Catalog) Open(name string) (listing.Driver, error) {
	def, err := c.defs.Lookup(name)
	if err != nil {
		return nil, err
	}
	switch def.Name {
	case "ctes":
		return open[CTE](c, def, CTERenderer{Empty: def.EmptyMessage}, DecodeCTE)
	case "users":
		return open[User](c, def, UserRenderer{Empty: def.EmptyMessage}, DecodeUser)
	case "clients":
		return open[Client](c, def, ClientRenderer{Empty: def.EmptyMessage}, DecodeClient)
	default:
		return nil, fmt.Errorf("%w: %q has no renderer", ErrUnknownScreen, name)
	}
}

func open[R any](c *Catalog, def Definition, renderer listing.Renderer[R], decode func(gjson.Result) (R, error)) (listing.Driver, error) {
	ctrl, err := listing.New(listing.Config[R]{
		Screen:        def.Name,
		Endpoint:      def.Endpoint,
		ItemsKeys:     def.ItemsKeys,
		PageSize:      def.PageSize,
		PageSizeParam: def.PageSizeParam,
		Timeout:       def.Timeout,
		Defaults:      def.Defaults(),
		Fetcher:       c.fetcher,
		Renderer:      renderer,
		Decode:        decode,
		Query:         def.Query,
		Logger:        c.logger.With(slog.String("screen", def.Name)),
		Observer:      c.observer,
	})
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}
