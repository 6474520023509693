// Package router resolves provider, key and model for a generation request
// and dispatches it to the matching provider strategy.
package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"regstudio/internal/metrics"
	"regstudio/internal/providers"
	"regstudio/internal/providers/registry"
)

const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// AIConfig is the per-call configuration. Zero values mean "use the default";
// Temperature is a pointer so an explicit 0 is kept.
type AIConfig struct {
	Model             string
	MaxTokens         int
	Temperature       *float64
	SystemInstruction string
	ResponseMimeType  string
	Provider          providers.Kind
}

type Config struct {
	// GeminiKey is the ambient key from process configuration. It is only
	// consulted for Gemini calls without an override.
	GeminiKey     string
	GeminiBaseURL string
	OpenAIBaseURL string
	HTTPClient    *http.Client
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Router is stateless after construction and safe for concurrent use.
type Router struct {
	geminiKey  string
	baseURLs   map[providers.Kind]string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

func New(cfg Config) *Router {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Router{
		geminiKey: strings.TrimSpace(cfg.GeminiKey),
		baseURLs: map[providers.Kind]string{
			providers.KindGemini: cfg.GeminiBaseURL,
			providers.KindOpenAI: cfg.OpenAIBaseURL,
		},
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		metrics:    m,
	}
}

// HasAmbientKey reports whether a call for kind without an override key
// would still find a credential.
func (r *Router) HasAmbientKey(kind providers.Kind) bool {
	return kind == providers.KindGemini && r.geminiKey != ""
}

// GenerateText sends prompt to the configured provider and returns its text.
// An empty string is a valid result; deciding whether that is an error is up
// to the caller.
func (r *Router) GenerateText(ctx context.Context, prompt, overrideKey string, cfg AIConfig) (string, error) {
	kind, err := providers.ParseKind(string(cfg.Provider))
	if err != nil {
		r.metrics.AIRequests.WithLabelValues("unsupported", "unsupported_provider").Inc()
		return "", err
	}

	key := r.resolveKey(kind, overrideKey)
	if key == "" {
		r.metrics.AIRequests.WithLabelValues(string(kind), "missing_credential").Inc()
		return "", &providers.MissingCredentialError{Provider: kind}
	}

	p, err := registry.Build(registry.BuildOptions{
		Kind:       kind,
		BaseURL:    r.baseURLs[kind],
		APIKey:     key,
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return "", err
	}

	req := normalize(kind, prompt, cfg)
	r.logger.Debug().
		Str("provider", string(kind)).
		Str("model", req.Model).
		Int("max_tokens", req.MaxTokens).
		Bool("json", req.WantsJSON()).
		Msg("dispatching generation request")

	start := time.Now()
	text, err := p.Generate(ctx, req)
	r.metrics.AIDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	r.metrics.AIRequests.WithLabelValues(string(kind), outcome(err)).Inc()
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *Router) resolveKey(kind providers.Kind, overrideKey string) string {
	if k := strings.TrimSpace(overrideKey); k != "" {
		return k
	}
	if kind == providers.KindGemini {
		return r.geminiKey
	}
	return ""
}

func normalize(kind providers.Kind, prompt string, cfg AIConfig) providers.Request {
	req := providers.Request{
		Model:             strings.TrimSpace(cfg.Model),
		Prompt:            prompt,
		SystemInstruction: cfg.SystemInstruction,
		MaxTokens:         cfg.MaxTokens,
		Temperature:       DefaultTemperature,
		ResponseMimeType:  cfg.ResponseMimeType,
	}
	if req.Model == "" {
		req.Model = registry.DefaultModel(kind)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	return req
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		perr   *providers.ProviderError
		halted *providers.GenerationHaltedError
		terr   *providers.TransportError
	)
	switch {
	case errors.As(err, &perr):
		return "provider_error"
	case errors.As(err, &halted):
		return "halted"
	case errors.As(err, &terr):
		return "transport_error"
	default:
		return "error"
	}
}
