// Package svg renders the dashboard charts as accessible inline SVG.
package svg

import "errors"

// Series is one named run of values aligned with the chart labels.
type Series struct {
	Label  string
	Values []float64
	Color  string
}

// Opts customises a chart.
type Opts struct {
	Title       string
	Description string
	Width       int
	Height      int
	Padding     float64
	TickCount   int
	ShowDots    bool
	// Format renders axis ticks and value labels. Defaults to compact pt-BR
	// notation.
	Format func(float64) string
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5
)

var palette = []string{"#2563eb", "#f97316", "#16a34a", "#dc2626", "#7c3aed", "#0891b2"}

var (
	ErrNoSeries         = errors.New("svg: at least one series required")
	ErrLabelMismatch    = errors.New("svg: series length must match labels")
	ErrViewportTooSmall = errors.New("svg: viewport too small")
)

func (o Opts) withDefaults() Opts {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	if o.TickCount <= 0 {
		o.TickCount = DefaultTicks
	}
	if o.Format == nil {
		o.Format = Compact
	}
	return o
}

func validate(labels []string, series []Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return ErrLabelMismatch
		}
	}
	if len(labels) == 0 {
		return ErrLabelMismatch
	}
	return nil
}

func seriesColor(s Series, i int) string {
	if s.Color != "" {
		return s.Color
	}
	return palette[i%len(palette)]
}
