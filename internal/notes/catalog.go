package notes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"regstudio/internal/providers"
)

const (
	FeatureTransform = "transform"
	FeatureEntity    = "entity"
	FeatureFormat    = "format"
	FeatureMindmap   = "mindmap"
	FeatureQuiz      = "quiz"
)

// Features lists the AI features in display order.
var Features = []string{FeatureTransform, FeatureEntity, FeatureFormat, FeatureMindmap, FeatureQuiz}

type Model struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Provider providers.Kind `json:"provider" yaml:"provider"`
}

// Settings is the per-feature configuration a user can edit.
type Settings struct {
	Feature   string `json:"feature" yaml:"-"`
	Model     string `json:"model" yaml:"model"`
	MaxTokens int    `json:"maxTokens" yaml:"max_tokens"`
	Prompt    string `json:"prompt" yaml:"prompt"`
}

type Catalog struct {
	Models   []Model             `yaml:"models"`
	Defaults map[string]Settings `yaml:"features"`
}

func DefaultCatalog() *Catalog {
	const model = "gemini-2.5-flash"
	return &Catalog{
		Models: []Model{
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: providers.KindGemini},
			{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", Provider: providers.KindGemini},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: providers.KindOpenAI},
			{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: providers.KindOpenAI},
		},
		Defaults: map[string]Settings{
			FeatureTransform: {Feature: FeatureTransform, Model: model, MaxTokens: 4096, Prompt: promptTransform},
			FeatureEntity:    {Feature: FeatureEntity, Model: model, MaxTokens: 4096, Prompt: promptEntity},
			FeatureFormat:    {Feature: FeatureFormat, Model: model, MaxTokens: 4096, Prompt: promptFormat},
			FeatureMindmap:   {Feature: FeatureMindmap, Model: model, MaxTokens: 2048, Prompt: promptMindmap},
			FeatureQuiz:      {Feature: FeatureQuiz, Model: model, MaxTokens: 2048, Prompt: promptQuiz},
		},
	}
}

// LoadCatalog overlays the YAML file at path on the default catalog. A model
// list in the file replaces the default list; feature entries are merged
// field by field. An empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if strings.TrimSpace(path) == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var overlay Catalog
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse prompts file: %w", err)
	}

	if len(overlay.Models) > 0 {
		for i, m := range overlay.Models {
			kind, err := providers.ParseKind(string(m.Provider))
			if err != nil || strings.TrimSpace(m.ID) == "" {
				return nil, fmt.Errorf("prompts file: invalid model entry %+v", m)
			}
			overlay.Models[i].Provider = kind
		}
		c.Models = overlay.Models
	}
	for feature, o := range overlay.Defaults {
		base, ok := c.Defaults[feature]
		if !ok {
			return nil, fmt.Errorf("prompts file: unknown feature %q", feature)
		}
		if o.Model != "" {
			base.Model = o.Model
		}
		if o.MaxTokens > 0 {
			base.MaxTokens = o.MaxTokens
		}
		if strings.TrimSpace(o.Prompt) != "" {
			base.Prompt = strings.TrimRight(o.Prompt, "\n")
		}
		c.Defaults[feature] = base
	}
	return c, nil
}

// ProviderFor maps a model id to its provider; unknown models go to Gemini.
func (c *Catalog) ProviderFor(model string) providers.Kind {
	for _, m := range c.Models {
		if m.ID == model {
			return m.Provider
		}
	}
	return providers.KindGemini
}

func (c *Catalog) HasModel(model string) bool {
	for _, m := range c.Models {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (c *Catalog) Default(feature string) (Settings, bool) {
	s, ok := c.Defaults[feature]
	return s, ok
}
