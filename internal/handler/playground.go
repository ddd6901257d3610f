// Package handler contains the HTTP handlers for the playground.
//
// Handlers parse the request, call a service, and write the response. They
// hold no business rules; those live in internal/service.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/jsmemes/internal/examples"
	"github.com/sakif/jsmemes/internal/executor"
)

//go:embed templates/*.html
var templateFS embed.FS

// PlaygroundHandler serves the playground page.
// Templates are parsed once at startup and reused.
type PlaygroundHandler struct {
	templates *template.Template
	catalog   *examples.Catalog
	logger    *slog.Logger
}

// NewPlaygroundHandler parses the embedded templates. base.html holds the
// page frame with a {{template "content" .}} slot that playground.html fills.
func NewPlaygroundHandler(catalog *examples.Catalog, logger *slog.Logger) (*PlaygroundHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/playground.html")
	if err != nil {
		return nil, err
	}

	return &PlaygroundHandler{
		templates: tmpl,
		catalog:   catalog,
		logger:    logger,
	}, nil
}

// HandlePlayground serves the main playground page.
//
// HTTP: GET /
func (h *PlaygroundHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title":     "jsmemes: JavaScript quirks playground",
		"Examples":  h.catalog.List(),
		"MaxLength": executor.MaxSourceLength,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
