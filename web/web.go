// Package web holds the form page templates.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templates embed.FS

// Templates parses every page template.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templates, "templates/*.html"))
}
