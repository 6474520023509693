package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLKeepsNoteMarkup(t *testing.T) {
	out, err := New().HTML("# Summary\n\nThe <mark style=\"background-color: #FF7F50\">predicate</mark> device and <span style='color: coral'>risk</span>.\n\n| Entity Name | Context |\n| :--- | :--- |\n| **ISO 14971** | risk |\n")
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>Summary</h1>")
	assert.Contains(t, out, "<mark")
	assert.Contains(t, out, "background-color")
	assert.Contains(t, out, "predicate</mark>")
	assert.Contains(t, out, "coral")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>ISO 14971</strong>")
}

func TestHTMLStripsActiveContent(t *testing.T) {
	out, err := New().HTML("hello <script>alert(1)</script>\n\n<span onclick=\"steal()\" style=\"position: fixed\">x</span>\n\n[link](javascript:alert(1))")
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "position")
	assert.NotContains(t, out, "javascript:")
}

func TestHTMLKeepsMermaidFence(t *testing.T) {
	out, err := New().HTML("```mermaid\nmindmap\n  root((Device))\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, `class="language-mermaid"`)
	assert.Contains(t, out, "root((Device))")
}
