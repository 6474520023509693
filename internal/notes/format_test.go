package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regstudio/internal/providers"
)

func TestEntitiesToMarkdown(t *testing.T) {
	md, err := EntitiesToMarkdown(`{"summary":"","entities":[{"name":"Predicate | device","context":"line one\nline two"}]}`)
	require.NoError(t, err)

	want := "# Summary\n\nNo summary provided.\n\n## Key Entities\n\n| Entity Name | Context |\n| :--- | :--- |\n" +
		"| **Predicate \\| device** | line one line two |\n"
	assert.Equal(t, want, md)

	_, err = EntitiesToMarkdown("{broken")
	assert.Error(t, err)
}

func TestMindmapMarkdownWithoutFences(t *testing.T) {
	md := MindmapMarkdown("mindmap\n  root((Device))")
	assert.Equal(t, "# Mindmap\n\n```mermaid\nmindmap\n  root((Device))\n```\n\n> Note: Switch to Preview mode to see charts (if supported) or copy code to a Mermaid editor.", md)
}

func TestErrorMarkdownQuotesEveryLine(t *testing.T) {
	assert.Equal(t, "> **Error during execution:**\n> first\n> second", ErrorMarkdown("first\nsecond"))
}

func TestHighlight(t *testing.T) {
	out, err := Highlight("Risk and risk factor review", "risk, risk factor ,", "")
	require.NoError(t, err)
	assert.Equal(t,
		`<mark style="background-color: #FF7F50">Risk</mark> and <mark style="background-color: #FF7F50">risk factor</mark> review`,
		out)

	out, err = Highlight("mark the style", "mark,style", "#0f0")
	require.NoError(t, err)
	assert.Equal(t, `<mark style="background-color: #0f0">mark</mark> the <mark style="background-color: #0f0">style</mark>`, out)

	_, err = Highlight("text", " , ", "")
	assert.ErrorIs(t, err, ErrNoKeywords)

	_, err = Highlight("text", "text", "red;position:fixed")
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestHighlightTreatsKeywordsLiterally(t *testing.T) {
	out, err := Highlight("Section 510(k) and 510k", "510(k)", "#ffff00")
	require.NoError(t, err)
	assert.Equal(t, `Section <mark style="background-color: #ffff00">510(k)</mark> and 510k`, out)
}

func TestHighlightLeavesExistingMarkupAlone(t *testing.T) {
	first, err := Highlight("Residual risk is acceptable.", "risk", "")
	require.NoError(t, err)

	out, err := Highlight(first, "color, background, risk, acceptable", "#00ff00")
	require.NoError(t, err)
	assert.Equal(t,
		`Residual <mark style="background-color: #FF7F50">risk</mark> is <mark style="background-color: #00ff00">acceptable</mark>.`,
		out)

	out, err = Highlight(`<span class="note">dose < 5 mg</span>`, "note, dose", "")
	require.NoError(t, err)
	assert.Equal(t, `<span class="note"><mark style="background-color: #FF7F50">dose</mark> < 5 mg</span>`, out)
}

func TestLoadCatalogOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - id: gemini-2.5-pro
    name: Gemini 2.5 Pro
    provider: gemini
  - id: gpt-4o
    name: GPT-4o
    provider: OpenAI
features:
  quiz:
    max_tokens: 1000
    prompt: |
      Ask three questions.
`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Models, 2)
	assert.Equal(t, providers.KindOpenAI, c.ProviderFor("gpt-4o"), "provider names are stored in canonical form")
	assert.Equal(t, providers.KindOpenAI, c.Models[1].Provider)
	assert.Equal(t, providers.KindGemini, c.ProviderFor("unknown-model"))

	quiz, ok := c.Default(FeatureQuiz)
	require.True(t, ok)
	assert.Equal(t, FeatureQuiz, quiz.Feature)
	assert.Equal(t, 1000, quiz.MaxTokens)
	assert.Equal(t, "Ask three questions.", quiz.Prompt)
	assert.Equal(t, "gemini-2.5-flash", quiz.Model)

	entity, _ := c.Default(FeatureEntity)
	assert.Equal(t, promptEntity, entity.Prompt)
}

func TestLoadCatalogRejectsBadEntries(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("features:\n  poem:\n    prompt: x\n"), 0o600))
	_, err := LoadCatalog(bad)
	assert.Error(t, err)

	badProvider := filepath.Join(dir, "provider.yaml")
	require.NoError(t, os.WriteFile(badProvider, []byte("models:\n  - id: claude\n    provider: anthropic\n"), 0o600))
	_, err = LoadCatalog(badProvider)
	assert.Error(t, err)

	c, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, c.HasModel("gpt-4o-mini"))
}
