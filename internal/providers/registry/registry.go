package registry

import (
	"fmt"
	"net/http"

	"regstudio/internal/providers"
	"regstudio/internal/providers/gemini"
	"regstudio/internal/providers/openai"
)

type BuildOptions struct {
	Kind       providers.Kind
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func Build(opts BuildOptions) (providers.Provider, error) {
	switch opts.Kind {
	case providers.KindGemini:
		return gemini.New(gemini.Config{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			HTTPClient: opts.HTTPClient,
		}), nil

	case providers.KindOpenAI:
		return openai.New(openai.Config{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			HTTPClient: opts.HTTPClient,
		}), nil

	default:
		return nil, fmt.Errorf("%w kind %q", providers.ErrUnsupportedProvider, opts.Kind)
	}
}

// DefaultModel is the model used when a request names none.
func DefaultModel(kind providers.Kind) string {
	if kind == providers.KindOpenAI {
		return openai.DefaultModel
	}
	return gemini.DefaultModel
}
