package openai

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
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o-mini"

	completionsPath = "/v1/chat/completions"
)

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
	endpointURL, err := c.endpointURL()
	if err != nil {
		return "", err
	}

	body, err := providers.PostJSON(ctx, c.cfg.HTTPClient, providers.KindOpenAI, endpointURL, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, buildPayload(req))
	if err != nil {
		return "", err
	}
	return parseChatCompletion(body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

func buildPayload(req providers.Request) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.SystemInstruction) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.WantsJSON() {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return payload
}

func (c *Client) endpointURL() (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if strings.HasSuffix(base, "/chat/completions") {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse openai base url: %w", err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/v1") {
		u.Path = path + "/chat/completions"
	} else {
		u.Path = path + completionsPath
	}
	return u.String(), nil
}

// parseChatCompletion returns the first choice's message content, or "" when
// the response carries none.
func parseChatCompletion(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message *struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *resp.Choices[0].Message.Content, nil
}
