package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// MissingCredentialError is returned before any network I/O when no key resolves.
type MissingCredentialError struct {
	Provider Kind
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key is missing. Please provide it in Settings or Environment.", e.Provider)
}

// ProviderError is a non-2xx response from a provider endpoint.
type ProviderError struct {
	Provider   Kind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// GenerationHaltedError means the call succeeded but the model stopped for a
// reason other than a normal stop (SAFETY, MAX_TOKENS, RECITATION, ...).
type GenerationHaltedError struct {
	Provider Kind
	Reason   string
}

func (e *GenerationHaltedError) Error() string {
	return fmt.Sprintf("%s generation halted: %s", e.Provider, e.Reason)
}

// TransportError wraps a failure below HTTP (DNS, refused, reset).
type TransportError struct {
	Provider Kind
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewProviderError extracts error.message from a structured error body and
// falls back to the status text. Gemini and OpenAI share the
// {"error": {"message": ...}} shape.
func NewProviderError(kind Kind, statusCode int, body []byte) *ProviderError {
	msg := errorBodyMessage(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &ProviderError{Provider: kind, StatusCode: statusCode, Message: msg}
}

func errorBodyMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error.Message)
}
