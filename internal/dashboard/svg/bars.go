package svg

import (
	"io"
	"math"
)

// Bars writes a grouped vertical bar chart, one bar per series in each
// label group.
func Bars(w io.Writer, labels []string, series []Series, opts Opts) error {
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
	zeroY := o.Padding + chartHeight - (0-minVal)*scale
	groupWidth := chartWidth / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))

	c := &canvas{w: w}
	c.open(o, "bar")
	c.grid(o.Padding, o.Padding, chartWidth, chartHeight, minVal, maxVal, o.TickCount, o.Format)
	c.printf(`<g stroke="#475569" aria-hidden="true"><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line><line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line></g>`,
		o.Padding, o.Padding, o.Padding, o.Padding+chartHeight, o.Padding, zeroY, o.Padding+chartWidth, zeroY)

	for i, label := range labels {
		groupX := o.Padding + float64(i)*groupWidth + groupWidth*0.1
		for si, s := range series {
			v := s.Values[i]
			h := math.Abs(v * scale)
			top := zeroY
			if v >= 0 {
				top = zeroY - h
			}
			c.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s: %s</title></rect>`,
				groupX+float64(si)*barWidth, top, barWidth, h, seriesColor(s, si), esc(s.Label), esc(label), esc(o.Format(v)))
		}
		c.text(o.Padding+float64(i)*groupWidth+groupWidth/2, o.Padding+chartHeight+14, "middle", label)
	}
	if len(series) > 1 {
		c.legend(o.Padding, o.Padding-12, series)
	}
	c.close()
	return c.err
}
