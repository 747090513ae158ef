// Package export is the download boundary of the list screens. Spreadsheet and
// PDF files are produced by the backend and only linked to; JSON is fetched
// here and handed back as an attachment.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/pretty"

	"github.com/dashboard-baker/baker/internal/listing"
	"github.com/dashboard-baker/baker/internal/screens"
)

// Format is a download format offered by a screen.
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatJSON  Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for formats outside the known set.
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	// ErrNotOffered is returned when the screen has no endpoint for the format.
	ErrNotOffered = errors.New("export: format not offered by screen")
)

// ParseFormat validates a format name taken from the URL.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatExcel, FormatCSV, FormatPDF, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Redirect reports whether the browser downloads the format straight from the
// backend.
func (f Format) Redirect() bool { return f != FormatJSON }

// Source is the part of the backend client the exporter needs.
type Source interface {
	GetRaw(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error)
	URL(path string, query url.Values) string
}

// Exporter resolves downloads for every screen.
type Exporter struct {
	source  Source
	timeout time.Duration
	now     func() time.Time
}

// New constructs an exporter. timeout bounds the JSON fetch.
func New(source Source, timeout time.Duration) *Exporter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Exporter{source: source, timeout: timeout, now: time.Now}
}

// WithNow overrides the clock used for file names.
func (e *Exporter) WithNow(fn func() time.Time) *Exporter {
	if fn != nil {
		e.now = fn
	}
	return e
}

// URL builds the backend download link for format with the current filters.
// Unset filters are omitted.
func (e *Exporter) URL(def screens.Definition, format Format, filters listing.FilterState) (string, error) {
	path, err := endpoint(def, format)
	if err != nil {
		return "", err
	}
	return e.source.URL(path, def.FilterQuery(filters)), nil
}

// Download is a file ready to be written to the response.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// JSON fetches the JSON export of def and indents it for reading.
func (e *Exporter) JSON(ctx context.Context, def screens.Definition, filters listing.FilterState) (Download, error) {
	path, err := endpoint(def, FormatJSON)
	if err != nil {
		return Download{}, err
	}
	body, err := e.source.GetRaw(ctx, path, def.FilterQuery(filters), e.timeout)
	if err != nil {
		return Download{}, fmt.Errorf("export: fetch %s json: %w", def.Name, err)
	}
	return Download{
		Filename:    fmt.Sprintf("%s-%s.json", def.Name, e.now().Format("20060102-150405")),
		ContentType: "application/json",
		Body:        pretty.Pretty(body),
	}, nil
}

// Write sends the download as an attachment.
func (d Download) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, d.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Body)))
	_, err := w.Write(d.Body)
	return err
}

func endpoint(def screens.Definition, format Format) (string, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return "", err
	}
	path, ok := def.Exports[string(format)]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrNotOffered, def.Name, format)
	}
	return path, nil
}
