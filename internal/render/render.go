// Package render turns note Markdown into sanitized HTML for the preview pane.
package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New builds a renderer for GitHub-flavoured Markdown. Raw HTML in the input
// is passed through goldmark and then filtered, so the coloured spans and
// highlight marks produced by the note features survive while scripts and
// event handlers do not.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("mark", "span")
	policy.AllowStyles("color", "background-color").OnElements("mark", "span")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: policy,
	}
}

func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
