// Package gemini is the Generative Language API strategy of the AI router.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"regstudio/internal/providers"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"

	finishReasonStop = "STOP"
)

// harmCategories are all filterable categories; each is sent with BLOCK_NONE
// so regulatory and medical text is not rejected as a false positive.
var harmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, req providers.Request) (string, error) {
	endpointURL, err := c.endpointURL(req.Model)
	if err != nil {
		return "", err
	}

	body, err := providers.PostJSON(ctx, c.cfg.HTTPClient, providers.KindGemini, endpointURL, map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	}, buildPayload(req))
	if err != nil {
		return "", err
	}
	return parseGenerateContent(body)
}

// --- request types ---

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings"`
}

func buildPayload(req providers.Request) generateRequest {
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens:  req.MaxTokens,
			Temperature:      req.Temperature,
			ResponseMimeType: strings.TrimSpace(req.ResponseMimeType),
		},
		SafetySettings: make([]safetySetting, 0, len(harmCategories)),
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	for _, category := range harmCategories {
		payload.SafetySettings = append(payload.SafetySettings, safetySetting{
			Category:  category,
			Threshold: "BLOCK_NONE",
		})
	}
	return payload
}

func (c *Client) endpointURL(model string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.cfg.BaseURL))
	if err != nil {
		return "", fmt.Errorf("parse gemini base url: %w", err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/v1beta") && !strings.HasSuffix(path, "/v1") {
		path += "/v1beta"
	}
	u.Path = path + "/models/" + url.PathEscape(model) + ":generateContent"
	return u.String(), nil
}

// --- response types ---

type generateResponse struct {
	Text       *string `json:"text"`
	Candidates []struct {
		FinishReason string `json:"finishReason"`
		Content      *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// parseGenerateContent prefers an aggregated top-level text, then inspects the
// first candidate: an abnormal finish reason halts, otherwise the first part's
// text is returned. Anything missing yields "".
func parseGenerateContent(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if resp.Text != nil {
		return *resp.Text, nil
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	first := resp.Candidates[0]
	if reason := strings.TrimSpace(first.FinishReason); reason != "" && !strings.EqualFold(reason, finishReasonStop) {
		return "", &providers.GenerationHaltedError{Provider: providers.KindGemini, Reason: reason}
	}
	if first.Content == nil || len(first.Content.Parts) == 0 || first.Content.Parts[0].Text == nil {
		return "", nil
	}
	return *first.Content.Parts[0].Text, nil
}
