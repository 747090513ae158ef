package format

import "html/template"

// Badge tones map to the stylesheet's badge modifiers.
const (
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneDanger  = "danger"
	ToneInfo    = "info"
	ToneMuted   = "muted"
)

// Badge renders a status label as an escaped badge span.
func Badge(tone, label string) template.HTML {
	if tone == "" {
		tone = ToneMuted
	}
	return template.HTML(`<span class="badge badge-` + template.HTMLEscapeString(tone) + `">` + template.HTMLEscapeString(label) + `</span>`)
}
