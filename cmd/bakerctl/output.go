package main

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/dashboard-baker/baker/internal/dashboard"
	"github.com/dashboard-baker/baker/internal/listing"
)

var (
	colorRed    = color.New(color.FgRed)
	colorYellow = color.New(color.FgYellow)
	colorGreen  = color.New(color.FgGreen)
	colorFaint  = color.New(color.Faint)
	colorBold   = color.New(color.Bold)
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// plain turns a rendered cell back into terminal text.
func plain(cell template.HTML) string {
	text := tagPattern.ReplaceAllString(string(cell), " ")
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

func toned(tone, text string) string {
	switch tone {
	case "danger":
		return colorRed.Sprint(text)
	case "warning":
		return colorYellow.Sprint(text)
	case "success":
		return colorGreen.Sprint(text)
	case "muted":
		return colorFaint.Sprint(text)
	default:
		return text
	}
}

func statusText(s dashboard.Status) string {
	switch s {
	case dashboard.StatusReady:
		return colorGreen.Sprint(string(s))
	case dashboard.StatusFailed:
		return colorRed.Sprint(string(s))
	default:
		return colorYellow.Sprint(string(s))
	}
}

func printTable(w io.Writer, v listing.View) error {
	switch {
	case v.Failure != nil:
		_, err := fmt.Fprintf(w, "%s %s\n", colorRed.Sprint("falha:"), v.Failure.Message)
		return err
	case v.Table.Empty:
		_, err := fmt.Fprintln(w, colorFaint.Sprint(v.Table.EmptyMessage))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headers := make([]string, len(v.Table.Columns))
	for i, col := range v.Table.Columns {
		headers[i] = colorBold.Sprint(col.Label)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range v.Table.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = plain(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, colorFaint.Sprint(v.Summary))
	return err
}

func printRegion(w io.Writer, rv dashboard.RegionView) {
	fmt.Fprintf(w, "%s [%s]", colorBold.Sprint(rv.Title), statusText(rv.Status))
	if rv.Cached {
		fmt.Fprint(w, colorFaint.Sprint(" (cache)"))
	}
	fmt.Fprintln(w)
	if rv.Status == dashboard.StatusFailed {
		fmt.Fprintf(w, "  %s\n", colorRed.Sprint(rv.Error))
		return
	}
	for _, card := range rv.Panel.Cards {
		fmt.Fprintf(w, "  %s: %s\n", card.Label, toned(card.Tone, card.Value))
	}
	for _, item := range rv.Panel.Items {
		line := fmt.Sprintf("  - %s: %s", item.Label, toned(item.Tone, item.Value))
		if item.Detail != "" {
			line += colorFaint.Sprint(" " + item.Detail)
		}
		fmt.Fprintln(w, line)
	}
	if chart := rv.Panel.Chart; chart != nil {
		fmt.Fprintf(w, "  %s %s (%d pontos)\n", colorFaint.Sprint("gráfico:"), chart.Title, len(chart.Labels))
	}
	if rv.Panel.Empty != "" {
		fmt.Fprintf(w, "  %s\n", colorFaint.Sprint(rv.Panel.Empty))
	}
}
