package format

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate accepts the date encodings the backend is known to emit.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date renders raw as dd/mm/yyyy. Empty input renders "-" and input that cannot
// be parsed is returned untouched.
func Date(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "-"
	}
	t, ok := ParseDate(raw)
	if !ok {
		return raw
	}
	return t.Format("02/01/2006")
}

// DateTime renders raw as dd/mm/yyyy hh:mm.
func DateTime(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "-"
	}
	t, ok := ParseDate(raw)
	if !ok {
		return raw
	}
	return t.Format("02/01/2006 15:04")
}
