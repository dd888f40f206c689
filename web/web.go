// Package web embeds the browser page and its recorder script.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/index.html
var templates embed.FS

// Script is served at /script.js.
//
//go:embed static/script.js
var Script []byte

// Index renders the listing page.
var Index = template.Must(template.ParseFS(templates, "templates/index.html"))
