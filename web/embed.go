// Package web carries the HTML templates and browser assets compiled into the
// binary.
package web

import "embed"

// Templates holds layouts, partials and pages.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds the stylesheet and the fragment script served under /static/.
//
//go:embed static/css/*.css static/js/*.js
var Static embed.FS
