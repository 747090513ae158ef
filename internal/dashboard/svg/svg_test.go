package svg

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLineProducesAccessibleSVG(t *testing.T) {
	var buf bytes.Buffer
	err := Line(&buf, []string{"jan/2024", "fev/2024", "mar/2024"}, []Series{{Label: "Receita", Values: []float64{1000, 2500, 1800}}}, Opts{
		Title:       "Evolução mensal",
		Description: "Receita por mês",
		ShowDots:    true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<svg") || !strings.HasSuffix(out, "</svg>") {
		t.Fatalf("expected svg document, got %s", out)
	}
	if !strings.Contains(out, `aria-labelledby="evolu--o-mensal-line-title evolu--o-mensal-line-desc"`) {
		t.Fatalf("expected accessibility attributes, got %s", out)
	}
	if strings.Count(out, "<circle") != 3 {
		t.Fatalf("expected one dot per point")
	}
	if !strings.Contains(out, "fev/2024") {
		t.Fatalf("expected x labels")
	}
}

func TestLineMultipleSeriesHasLegend(t *testing.T) {
	var buf bytes.Buffer
	err := Line(&buf, []string{"a", "b"}, []Series{
		{Label: "Real", Values: []float64{1, 2}},
		{Label: "Tendência", Values: []float64{1.5, 1.8}},
	}, Opts{Title: "Tendência"})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	if !strings.Contains(buf.String(), "Tendência</text>") {
		t.Fatalf("expected legend entry")
	}
}

func TestBarsRendersOneRectPerValue(t *testing.T) {
	var buf bytes.Buffer
	err := Bars(&buf, []string{"A", "B", "C"}, []Series{
		{Label: "Valor", Values: []float64{10, -5, 20}},
		{Label: "Qtd", Values: []float64{1, 2, 3}},
	}, Opts{Title: "Veículos"})
	if err != nil {
		t.Fatalf("bars renderer error: %v", err)
	}
	if got := strings.Count(buf.String(), "<rect"); got != 6+2 {
		t.Fatalf("expected 6 bars and 2 legend swatches, got %d", got)
	}
}

func TestShareComputesPercentages(t *testing.T) {
	var buf bytes.Buffer
	if err := Share(&buf, []string{"Com baixa", "Sem baixa"}, []float64{75, 25}, Opts{Title: "Status"}); err != nil {
		t.Fatalf("share renderer error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "75,0%") || !strings.Contains(out, "25,0%") {
		t.Fatalf("expected pt-BR percentages, got %s", out)
	}
}

func TestValidation(t *testing.T) {
	var buf bytes.Buffer
	if err := Line(&buf, nil, nil, Opts{}); !errors.Is(err, ErrNoSeries) {
		t.Fatalf("expected ErrNoSeries, got %v", err)
	}
	if err := Bars(&buf, []string{"a"}, []Series{{Values: []float64{1, 2}}}, Opts{}); !errors.Is(err, ErrLabelMismatch) {
		t.Fatalf("expected ErrLabelMismatch, got %v", err)
	}
	if err := Line(&buf, []string{"a"}, []Series{{Values: []float64{1}}}, Opts{Width: 10, Height: 10}); !errors.Is(err, ErrViewportTooSmall) {
		t.Fatalf("expected ErrViewportTooSmall, got %v", err)
	}
}

func TestCompact(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		12.5:      "12,50",
		15000:     "15 mil",
		1_500_000: "1,5 mi",
	}
	for in, want := range cases {
		if got := Compact(in); got != want {
			t.Fatalf("Compact(%v) = %q, want %q", in, got, want)
		}
	}
}
