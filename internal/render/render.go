// Package render turns the lightweight markup of transcript entries into safe HTML.
package render

import (
	"bytes"
	"html"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a renderer with GFM tables, strikethrough and autolinks.
// Single newlines become line breaks, matching pre-wrapped chat text.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// HTML renders content. On conversion failure the escaped source is returned.
func (r *Renderer) HTML(content string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		slog.Debug("markdown conversion failed", "error", err)
		return html.EscapeString(content)
	}
	return string(r.policy.SanitizeBytes(buf.Bytes()))
}
