package dashboard

import (
	"io"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/dashboard/svg"
	"github.com/dashboard-baker/baker/internal/format"
)

// Card is a single headline number.
type Card struct {
	Label string
	Value string
	Hint  string
	Tone  string
}

// Item is one entry of a list panel such as alerts or stress scenarios.
type Item struct {
	Label  string
	Value  string
	Detail string
	Tone   string
}

// ChartKind selects the renderer of a chart.
type ChartKind string

const (
	ChartLine  ChartKind = "line"
	ChartBars  ChartKind = "bars"
	ChartShare ChartKind = "share"
)

// ChartSpec is the data behind a chart, independent of how it is drawn.
type ChartSpec struct {
	Kind        ChartKind
	Title       string
	Description string
	Labels      []string
	Series      []svg.Series
	Money       bool
}

// Render draws the chart to w.
func (s ChartSpec) Render(w io.Writer) error {
	opts := svg.Opts{Title: s.Title, Description: s.Description, ShowDots: s.Kind == ChartLine}
	if s.Money {
		opts.Format = func(v float64) string { return "R$ " + svg.Compact(v) }
	}
	switch s.Kind {
	case ChartBars:
		return svg.Bars(w, s.Labels, s.Series, opts)
	case ChartShare:
		var values []float64
		if len(s.Series) > 0 {
			values = s.Series[0].Values
		}
		return svg.Share(w, s.Labels, values, opts)
	default:
		return svg.Line(w, s.Labels, s.Series, opts)
	}
}

// Panel is what a region displays once its source has answered.
type Panel struct {
	Cards []Card
	Items []Item
	Chart *ChartSpec
	Empty string
}

const noData = "Sem dados para o período selecionado"

// chartFrom reads a {labels, <valueKeys>...} object into a chart. It returns
// nil when there are no labels.
func chartFrom(obj gjson.Result, kind ChartKind, title string, money bool, series ...seriesKey) *ChartSpec {
	labels := stringList(obj.Get("labels"))
	if len(labels) == 0 {
		return nil
	}
	spec := &ChartSpec{Kind: kind, Title: title, Description: title, Labels: labels, Money: money}
	for _, key := range series {
		values := floatList(obj.Get(key.Path))
		if len(values) != len(labels) {
			continue
		}
		spec.Series = append(spec.Series, svg.Series{Label: key.Label, Values: values})
	}
	if len(spec.Series) == 0 {
		return nil
	}
	return spec
}

type seriesKey struct {
	Path  string
	Label string
}

func chartPanel(spec *ChartSpec) Panel {
	if spec == nil {
		return Panel{Empty: noData}
	}
	return Panel{Chart: spec}
}

func stringList(r gjson.Result) []string {
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}

func floatList(r gjson.Result) []float64 {
	arr := r.Array()
	out := make([]float64, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Float())
	}
	return out
}

func moneyCard(obj gjson.Result, path, label string) Card {
	return Card{Label: label, Value: format.BRL(obj.Get(path).Float())}
}

func countCard(obj gjson.Result, path, label string) Card {
	return Card{Label: label, Value: format.Integer(obj.Get(path).Int())}
}

// rateCard colours a percentage: green from good upwards, amber from fair.
func rateCard(obj gjson.Result, path, label string, good, fair float64) Card {
	v := obj.Get(path).Float()
	tone := format.ToneDanger
	switch {
	case v >= good:
		tone = format.ToneSuccess
	case v >= fair:
		tone = format.ToneWarning
	}
	return Card{Label: label, Value: format.Percent(v), Tone: tone}
}

func seriesOf(label string, values []float64) []svg.Series {
	return []svg.Series{{Label: label, Values: values}}
}
