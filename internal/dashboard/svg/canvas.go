package svg

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// canvas writes SVG elements to w and remembers the first write error.
type canvas struct {
	w   io.Writer
	err error
}

func (c *canvas) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}

func (c *canvas) open(o Opts, kind string) {
	titleID := makeID(o.Title, kind+"-title")
	descID := makeID(o.Title, kind+"-desc")
	c.printf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, o.Width, o.Height, titleID, descID)
	c.printf(`<title id="%s">%s</title>`, titleID, esc(fallback(o.Title, "Gráfico")))
	c.printf(`<desc id="%s">%s</desc>`, descID, esc(fallback(o.Description, o.Title)))
}

func (c *canvas) close() {
	c.printf("</svg>")
}

func (c *canvas) grid(left, top, width, height, minVal, maxVal float64, ticks int, format func(float64) string) {
	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		y := top + height - ratio*height
		c.printf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#e2e8f0" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, left, y, left+width, y)
		c.printf(`<text x="%.2f" y="%.2f" fill="#475569" font-size="10" text-anchor="end">%s</text>`, left-6, y+4, esc(format(minVal+(maxVal-minVal)*ratio)))
	}
}

func (c *canvas) text(x, y float64, anchor, value string) {
	c.printf(`<text x="%.2f" y="%.2f" fill="#475569" font-size="10" text-anchor="%s">%s</text>`, x, y, anchor, esc(value))
}

func (c *canvas) legend(x, y float64, series []Series) {
	for i, s := range series {
		if s.Label == "" {
			continue
		}
		c.printf(`<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, seriesColor(s, i))
		c.text(x+14, y, "start", s.Label)
		x += 14 + float64(len([]rune(s.Label)))*6 + 16
	}
}

// Compact renders a tick value in short pt-BR notation: "1,5 mi", "12 mil".
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return printer.Sprintf("%.1f bi", v/1_000_000_000)
	case abs >= 1_000_000:
		return printer.Sprintf("%.1f mi", v/1_000_000)
	case abs >= 1_000:
		return printer.Sprintf("%.0f mil", v/1_000)
	case almostEqual(v, math.Round(v)):
		return printer.Sprintf("%.0f", v)
	default:
		return printer.Sprintf("%.2f", v)
	}
}

func bounds(series []Series) (float64, float64) {
	minVal, maxVal := 0.0, 0.0
	for _, s := range series {
		for _, v := range s.Values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	return minVal, maxVal
}

func esc(s string) string { return template.HTMLEscapeString(s) }

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}
