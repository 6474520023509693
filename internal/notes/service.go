// Package notes runs the note keeper's AI features: it assembles the prompt
// from the workspace's feature settings, calls the router and turns the raw
// model output into Markdown for the output pane.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"regstudio/internal/guard"
	"regstudio/internal/metrics"
	"regstudio/internal/providers"
	"regstudio/internal/router"
	"regstudio/internal/storage"
)

var (
	ErrEmptyInput       = errors.New("input text is empty")
	ErrEmptyOutput      = errors.New("AI returned empty content. Text might be blocked or model failed.")
	ErrUnknownFeature   = errors.New("unknown feature")
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidMaxTokens = errors.New("maxTokens must be between 1 and 65536")
)

const maxTokensLimit = 65536

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Generator interface {
	GenerateText(ctx context.Context, prompt, overrideKey string, cfg router.AIConfig) (string, error)
}

type KeySource interface {
	// ProviderKey returns the workspace's stored key for kind, or "" when
	// none is stored.
	ProviderKey(ctx context.Context, workspace string, kind providers.Kind) (string, error)
}

type SettingsStore interface {
	GetFeatureSettings(ctx context.Context, workspaceID, feature string) (storage.FeatureSettings, error)
	ListFeatureSettings(ctx context.Context, workspaceID string) ([]storage.FeatureSettings, error)
	UpsertFeatureSettings(ctx context.Context, f storage.FeatureSettings) error
}

// Journal receives the user-facing activity messages of a run.
type Journal interface {
	Log(ctx context.Context, workspace, message string, severity Severity)
}

type Config struct {
	Catalog   *Catalog
	Generator Generator
	Keys      KeySource
	Settings  SettingsStore
	Guard     guard.Guard
	Journal   Journal
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

type Service struct {
	catalog  *Catalog
	gen      Generator
	keys     KeySource
	settings SettingsStore
	guard    guard.Guard
	journal  Journal
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewService(cfg Config) *Service {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Guard == nil {
		cfg.Guard = guard.NewLocalGuard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	return &Service{
		catalog:  cfg.Catalog,
		gen:      cfg.Generator,
		keys:     cfg.Keys,
		settings: cfg.Settings,
		guard:    cfg.Guard,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Run executes one AI feature on rawText and returns the Markdown result.
func (s *Service) Run(ctx context.Context, workspace, feature, rawText string) (string, error) {
	if _, ok := s.catalog.Default(feature); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if strings.TrimSpace(rawText) == "" {
		s.log(ctx, workspace, "Please enter some text in the input box first", SeverityError)
		s.metrics.NoteRuns.WithLabelValues(feature, "rejected").Inc()
		return "", ErrEmptyInput
	}

	release, err := s.guard.Acquire(ctx, workspace, feature)
	if err != nil {
		s.metrics.NoteRuns.WithLabelValues(feature, "rejected").Inc()
		return "", err
	}
	defer release()

	s.log(ctx, workspace, fmt.Sprintf("Starting %s...", feature), SeverityInfo)

	out, err := s.run(ctx, workspace, feature, rawText)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrEmptyOutput) {
			outcome = "empty_output"
		}
		s.metrics.NoteRuns.WithLabelValues(feature, outcome).Inc()
		s.log(ctx, workspace, fmt.Sprintf("Failed to run %s: %v", feature, err), SeverityError)
		s.logger.Warn().Err(err).Str("workspace", workspace).Str("feature", feature).Msg("feature run failed")
		return "", err
	}

	s.metrics.NoteRuns.WithLabelValues(feature, "ok").Inc()
	s.log(ctx, workspace, fmt.Sprintf("%s completed successfully", strings.ToUpper(feature)), SeveritySuccess)
	return out, nil
}

func (s *Service) run(ctx context.Context, workspace, feature, rawText string) (string, error) {
	cfg, err := s.FeatureSettings(ctx, workspace, feature)
	if err != nil {
		return "", err
	}

	kind := s.catalog.ProviderFor(cfg.Model)
	key := ""
	if s.keys != nil {
		if key, err = s.keys.ProviderKey(ctx, workspace, kind); err != nil {
			return "", fmt.Errorf("load %s key: %w", kind, err)
		}
	}

	mime := providers.MimeText
	if feature == FeatureEntity {
		mime = providers.MimeJSON
	}

	fullPrompt := cfg.Prompt + "\n\n[INPUT TEXT]:\n" + rawText
	result, err := s.gen.GenerateText(ctx, fullPrompt, key, router.AIConfig{
		Model:            cfg.Model,
		MaxTokens:        cfg.MaxTokens,
		ResponseMimeType: mime,
		Provider:         kind,
	})
	if err != nil {
		return "", err
	}
	if result == "" {
		return "", ErrEmptyOutput
	}

	switch feature {
	case FeatureEntity:
		md, err := EntitiesToMarkdown(result)
		if err != nil {
			s.log(ctx, workspace, "Failed to parse entity JSON. Showing raw output.", SeverityWarning)
			return result, nil
		}
		return md, nil
	case FeatureMindmap:
		return MindmapMarkdown(result), nil
	default:
		return result, nil
	}
}

// FeatureSettings returns the catalog defaults for feature overlaid with
// anything the workspace has saved.
func (s *Service) FeatureSettings(ctx context.Context, workspace, feature string) (Settings, error) {
	def, ok := s.catalog.Default(feature)
	if !ok {
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if s.settings == nil {
		return def, nil
	}

	stored, err := s.settings.GetFeatureSettings(ctx, workspace, feature)
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return applyStored(def, stored), nil
}

func applyStored(def Settings, stored storage.FeatureSettings) Settings {
	if stored.Model != "" {
		def.Model = stored.Model
	}
	if stored.MaxTokens > 0 {
		def.MaxTokens = stored.MaxTokens
	}
	if stored.Prompt != "" {
		def.Prompt = stored.Prompt
	}
	return def
}

// AllSettings returns the effective settings of every feature in display
// order, reading the workspace's stored rows in one query.
func (s *Service) AllSettings(ctx context.Context, workspace string) ([]Settings, error) {
	stored := make(map[string]storage.FeatureSettings)
	if s.settings != nil {
		rows, err := s.settings.ListFeatureSettings(ctx, workspace)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			stored[r.Feature] = r
		}
	}

	out := make([]Settings, 0, len(Features))
	for _, f := range Features {
		def, _ := s.catalog.Default(f)
		out = append(out, applyStored(def, stored[f]))
	}
	return out, nil
}

// SettingsPatch carries the fields to change; nil fields are left alone and
// an empty prompt restores the default prompt.
type SettingsPatch struct {
	Model     *string
	MaxTokens *int
	Prompt    *string
}

func (s *Service) UpdateSettings(ctx context.Context, workspace, feature string, patch SettingsPatch) (Settings, error) {
	cfg, err := s.FeatureSettings(ctx, workspace, feature)
	if err != nil {
		return Settings{}, err
	}
	def, _ := s.catalog.Default(feature)

	if patch.Model != nil {
		if !s.catalog.HasModel(*patch.Model) {
			return Settings{}, fmt.Errorf("%w: %s", ErrUnknownModel, *patch.Model)
		}
		cfg.Model = *patch.Model
	}
	if patch.MaxTokens != nil {
		if *patch.MaxTokens < 1 || *patch.MaxTokens > maxTokensLimit {
			return Settings{}, ErrInvalidMaxTokens
		}
		cfg.MaxTokens = *patch.MaxTokens
	}
	if patch.Prompt != nil {
		cfg.Prompt = *patch.Prompt
		if strings.TrimSpace(cfg.Prompt) == "" {
			cfg.Prompt = def.Prompt
		}
	}

	if s.settings == nil {
		return cfg, nil
	}
	if err := s.settings.UpsertFeatureSettings(ctx, storage.FeatureSettings{
		WorkspaceID: workspace,
		Feature:     feature,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Prompt:      cfg.Prompt,
	}); err != nil {
		return Settings{}, err
	}
	s.log(ctx, workspace, fmt.Sprintf("Settings for %s saved", feature), SeverityInfo)
	return cfg, nil
}

func (s *Service) log(ctx context.Context, workspace, msg string, sev Severity) {
	if s.journal != nil {
		s.journal.Log(ctx, workspace, msg, sev)
	}
}
