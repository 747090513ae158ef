package svg

import "io"

// Share writes horizontal bars showing each label's share of the total of a
// single series. Negative values count as zero.
func Share(w io.Writer, labels []string, values []float64, opts Opts) error {
	if err := validate(labels, []Series{{Values: values}}); err != nil {
		return err
	}
	o := opts.withDefaults()
	rowHeight := 28.0
	if h := float64(o.Height) - 2*o.Padding; h < rowHeight*float64(len(labels)) {
		o.Height = int(rowHeight*float64(len(labels)) + 2*o.Padding)
	}
	labelWidth := float64(o.Width) * 0.3
	barSpace := float64(o.Width) - labelWidth - 2*o.Padding - 56
	if barSpace <= 0 {
		return ErrViewportTooSmall
	}

	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}

	c := &canvas{w: w}
	c.open(o, "share")
	for i, label := range labels {
		share := 0.0
		if total > 0 && values[i] > 0 {
			share = values[i] / total
		}
		top := o.Padding + float64(i)*rowHeight
		c.text(o.Padding+labelWidth-8, top+rowHeight/2+4, "end", label)
		c.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="#f1f5f9"></rect>`, o.Padding+labelWidth, top+4, barSpace, rowHeight-8)
		c.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s: %s</title></rect>`,
			o.Padding+labelWidth, top+4, barSpace*share, rowHeight-8, palette[i%len(palette)], esc(label), esc(o.Format(values[i])))
		c.text(o.Padding+labelWidth+barSpace+6, top+rowHeight/2+4, "start", printer.Sprintf("%.1f%%", share*100))
	}
	c.close()
	return c.err
}
