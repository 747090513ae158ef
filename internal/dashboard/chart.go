package dashboard

import (
	"bytes"
	"html/template"
	"sync"
	"sync/atomic"
)

// ChartPool hands out render buffers for charts and counts the charts alive.
type ChartPool struct {
	buffers  sync.Pool
	live     atomic.Int64
	onChange func(live int64)
}

// NewChartPool constructs a pool. onChange, when set, receives the live
// chart count after every acquire and release.
func NewChartPool(onChange func(live int64)) *ChartPool {
	return &ChartPool{
		buffers:  sync.Pool{New: func() any { return new(bytes.Buffer) }},
		onChange: onChange,
	}
}

// Live returns the number of charts not yet disposed.
func (p *ChartPool) Live() int64 { return p.live.Load() }

// Render draws spec into a pooled buffer. The caller owns the returned chart
// and must Dispose it.
func (p *ChartPool) Render(spec ChartSpec) (*Chart, error) {
	buf := p.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	if err := spec.Render(buf); err != nil {
		p.buffers.Put(buf)
		return nil, err
	}
	p.changed(p.live.Add(1))
	return &Chart{pool: p, buf: buf, kind: spec.Kind}, nil
}

func (p *ChartPool) release(buf *bytes.Buffer) {
	buf.Reset()
	p.buffers.Put(buf)
	p.changed(p.live.Add(-1))
}

func (p *ChartPool) changed(n int64) {
	if p.onChange != nil {
		p.onChange(n)
	}
}

// Chart is a rendered chart holding a pooled buffer until disposed.
type Chart struct {
	pool     *ChartPool
	buf      *bytes.Buffer
	kind     ChartKind
	disposed atomic.Bool
}

// Kind reports which renderer drew the chart.
func (c *Chart) Kind() ChartKind { return c.kind }

// HTML copies the rendered markup. A disposed chart renders nothing.
func (c *Chart) HTML() template.HTML {
	if c == nil || c.disposed.Load() {
		return ""
	}
	return template.HTML(c.buf.String()) //nolint:gosec // produced by the svg package with escaped text
}

// Dispose returns the buffer to the pool. Calling it twice is a no-op.
func (c *Chart) Dispose() {
	if c == nil || !c.disposed.CompareAndSwap(false, true) {
		return
	}
	buf := c.buf
	c.buf = nil
	c.pool.release(buf)
}
