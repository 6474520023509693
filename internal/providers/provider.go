package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindGemini Kind = "gemini"
	KindOpenAI Kind = "openai"
)

const (
	MimeText = "text/plain"
	MimeJSON = "application/json"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// ParseKind maps a provider name to its canonical Kind. Matching ignores case
// and surrounding space; an empty name selects Gemini.
func ParseKind(v string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(v))) {
	case "", KindGemini:
		return KindGemini, nil
	case KindOpenAI:
		return KindOpenAI, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedProvider, v)
	}
}

// Request is a fully resolved generation call: defaults applied, key chosen.
type Request struct {
	Model             string
	Prompt            string
	SystemInstruction string
	MaxTokens         int
	Temperature       float64
	ResponseMimeType  string
}

func (r Request) WantsJSON() bool {
	return strings.EqualFold(strings.TrimSpace(r.ResponseMimeType), MimeJSON)
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}
