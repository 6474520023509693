package notes

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

const DefaultHighlightColor = "#FF7F50"

var (
	ErrNoKeywords   = errors.New("no keywords to highlight")
	ErrInvalidColor = errors.New("color must be a hex value like #FF7F50")

	hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Highlight wraps every case-insensitive occurrence of the comma-separated
// keywords in a <mark> tag. Text that is already highlighted and the inside
// of HTML tags are left untouched, so highlighting processed output twice
// never rewrites earlier markup.
func Highlight(text, keywords, color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultHighlightColor
	}
	if !hexColor.MatchString(color) {
		return "", ErrInvalidColor
	}

	seen := make(map[string]struct{})
	terms := make([]string, 0)
	for _, kw := range strings.Split(keywords, ",") {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(kw)]; ok {
			continue
		}
		seen[strings.ToLower(kw)] = struct{}{}
		terms = append(terms, regexp.QuoteMeta(kw))
	}
	if len(terms) == 0 {
		return "", ErrNoKeywords
	}
	// longest first so "risk factor" wins over "risk"
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	// group 1 is existing markup, group 2 a keyword hit
	re := regexp.MustCompile(`(?is)(<mark\b[^>]*>.*?</mark>|</?[a-z][^<>]*>)|(` + strings.Join(terms, "|") + `)`)
	open := `<mark style="background-color: ` + color + `">`

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		if loc[4] < 0 {
			continue
		}
		b.WriteString(text[last:loc[4]])
		b.WriteString(open)
		b.WriteString(text[loc[4]:loc[5]])
		b.WriteString("</mark>")
		last = loc[5]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
