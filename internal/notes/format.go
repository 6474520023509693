package notes

import (
	"encoding/json"
	"fmt"
	"strings"
)

type entityReport struct {
	Summary  string `json:"summary"`
	Entities []struct {
		Name    string `json:"name"`
		Context string `json:"context"`
	} `json:"entities"`
}

func stripFences(text string, langs ...string) string {
	for _, lang := range langs {
		text = strings.ReplaceAll(text, "```"+lang, "")
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
}

// EntitiesToMarkdown turns the entity feature's JSON into a summary section
// and a two-column table.
func EntitiesToMarkdown(raw string) (string, error) {
	var report entityReport
	if err := json.Unmarshal([]byte(stripFences(raw, "json")), &report); err != nil {
		return "", fmt.Errorf("parse entity json: %w", err)
	}

	summary := report.Summary
	if summary == "" {
		summary = "No summary provided."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Summary\n\n%s\n\n## Key Entities\n\n| Entity Name | Context |\n| :--- | :--- |\n", summary)
	for _, e := range report.Entities {
		fmt.Fprintf(&b, "| **%s** | %s |\n", tableCell(e.Name), tableCell(e.Context))
	}
	return b.String(), nil
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func MindmapMarkdown(raw string) string {
	code := stripFences(raw, "mermaid")
	return "# Mindmap\n\n```mermaid\n" + code + "\n```\n\n> Note: Switch to Preview mode to see charts (if supported) or copy code to a Mermaid editor."
}

// ErrorMarkdown is shown in the output pane in place of a result.
func ErrorMarkdown(msg string) string {
	return "> **Error during execution:**\n> " + strings.ReplaceAll(msg, "\n", "\n> ")
}
