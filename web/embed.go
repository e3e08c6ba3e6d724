// Package web carries the page templates and stylesheet compiled into the
// fintrack binary.
package web

import "embed"

var (
	//go:embed templates/*.html
	TemplatesFS embed.FS

	//go:embed static
	StaticFS embed.FS
)
