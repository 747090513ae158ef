package svg

import (
	"io"
	"strconv"
	"strings"
)

// Line writes a line chart with one path per series. The first series gets a
// shaded area when it is the only one.
func Line(w io.Writer, labels []string, series []Series, opts Opts) error {
	if err := validate(labels, series); err != nil {
		return err
	}
	o := opts.withDefaults()
	chartWidth := float64(o.Width) - 2*o.Padding
	chartHeight := float64(o.Height) - 2*o.Padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return ErrViewportTooSmall
	}

	minVal, maxVal := bounds(series)
	scale := chartHeight / (maxVal - minVal)
	base := o.Padding + chartHeight

	x := func(i int) float64 {
		if len(labels) == 1 {
			return o.Padding + chartWidth/2
		}
		return o.Padding + float64(i)*chartWidth/float64(len(labels)-1)
	}
	y := func(v float64) float64 {
		return base - (v-minVal)*scale
	}

	c := &canvas{w: w}
	c.open(o, "line")
	c.grid(o.Padding, o.Padding, chartWidth, chartHeight, minVal, maxVal, o.TickCount, o.Format)
	c.printf(`<g stroke="#475569" aria-hidden="true"><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line></g>`,
		o.Padding, o.Padding, o.Padding, base, o.Padding, base, o.Padding+chartWidth, base)

	for si, s := range series {
		color := seriesColor(s, si)
		var path strings.Builder
		for i, v := range s.Values {
			cmd := " L"
			if i == 0 {
				cmd = "M"
			}
			path.WriteString(cmd + strconv.FormatFloat(x(i), 'f', 2, 64) + " " + strconv.FormatFloat(y(v), 'f', 2, 64))
		}
		if len(series) == 1 {
			c.printf(`<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" fill-opacity="0.12" stroke="none" aria-hidden="true"></path>`,
				path.String(), x(len(s.Values)-1), base, x(0), base, color)
		}
		c.printf(`<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"><title>%s</title></path>`,
			path.String(), color, esc(s.Label))
		if o.ShowDots {
			for i, v := range s.Values {
				c.printf(`<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s: %s</title></circle>`, x(i), y(v), color, esc(labels[i]), esc(o.Format(v)))
			}
		}
	}

	for i, label := range labels {
		c.text(x(i), base+14, "middle", label)
	}
	if len(series) > 1 {
		c.legend(o.Padding, o.Padding-12, series)
	}
	c.close()
	return c.err
}
