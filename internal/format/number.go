// Package format holds the presentational formatters shared by list rows and
// dashboard panels. Values follow the pt-BR conventions the back office uses.
package format

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// BRL renders a monetary amount as Brazilian reais, e.g. "R$ 1.234,56".
func BRL(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "R$ 0,00"
	}
	if v < 0 {
		return "-R$ " + printer.Sprintf("%.2f", -v)
	}
	return "R$ " + printer.Sprintf("%.2f", v)
}

// Integer renders a whole number with "." as the thousands separator.
func Integer(v int64) string {
	return printer.Sprintf("%d", v)
}

// Percent renders a ratio already expressed in percent points with one decimal.
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0,0%"
	}
	return printer.Sprintf("%.1f", v) + "%"
}

// Initial returns the upper-cased first letter of name, used for avatars.
func Initial(name string) string {
	name = strings.TrimSpace(name)
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return "?"
}
