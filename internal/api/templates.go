package api

import (
	"embed"
	"html/template"
	"strconv"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"value": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 2, 64)
		},
		"clock": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
