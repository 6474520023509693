package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regstudio/internal/providers"
	"regstudio/internal/providers/gemini"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *gemini.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return gemini.New(gemini.Config{BaseURL: srv.URL, APIKey: "test-key"})
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read body: %v", err)
		return nil
	}
	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Errorf("unmarshal body: %v", err)
		return nil
	}
	return req
}

func TestGenerate_RequestShape(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		got = readBody(t, r)
		_, _ = io.WriteString(w, `{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"ok"}]}}]}`)
	})

	_, err := c.Generate(context.Background(), providers.Request{
		Model:             "gemini-2.5-flash",
		Prompt:            "Summarise the predicate device comparison",
		SystemInstruction: "You are an FDA reviewer",
		MaxTokens:         2048,
		Temperature:       0.2,
		ResponseMimeType:  providers.MimeJSON,
	})
	require.NoError(t, err)

	contents, ok := got["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "Summarise the predicate device comparison", parts[0].(map[string]any)["text"])

	si, ok := got["systemInstruction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "You are an FDA reviewer", si["parts"].([]any)[0].(map[string]any)["text"])

	gc, ok := got["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2048, gc["maxOutputTokens"])
	assert.EqualValues(t, 0.2, gc["temperature"])
	assert.Equal(t, "application/json", gc["responseMimeType"])

	safety, ok := got["safetySettings"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, safety)
	for _, s := range safety {
		assert.Equal(t, "BLOCK_NONE", s.(map[string]any)["threshold"])
	}
}

func TestGenerate_PlainRequestOmitsOptionalFields(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = readBody(t, r)
		_, _ = io.WriteString(w, `{"text":"done"}`)
	})

	_, err := c.Generate(context.Background(), providers.Request{Model: "gemini-2.5-flash-lite", Prompt: "hi", MaxTokens: 10})
	require.NoError(t, err)

	assert.NotContains(t, got, "systemInstruction")
	assert.NotContains(t, got["generationConfig"].(map[string]any), "responseMimeType")
}

func TestGenerate_AggregatedTextWins(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":"aggregated","candidates":[{"finishReason":"SAFETY"}]}`)
	})

	text, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "aggregated", text)
}

func TestGenerate_SafetyFinishReasonHalts(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"finishReason":"SAFETY","content":{"parts":[]}}]}`)
	})

	_, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})

	var halted *providers.GenerationHaltedError
	require.True(t, errors.As(err, &halted))
	assert.Equal(t, "SAFETY", halted.Reason)
}

func TestGenerate_StopFallsBackToFirstPart(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"ok"},{"text":"ignored"}]}}]}`)
	})

	text, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerate_MissingTextIsEmpty(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"finishReason":"STOP"}]}`,
	} {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		text, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})
		require.NoError(t, err, body)
		assert.Empty(t, text, body)
	}
}

func TestGenerate_ErrorBodyMessage(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})

	var perr *providers.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, providers.KindGemini, perr.Provider)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, "API key not valid. Please pass a valid API key.", perr.Message)
}

func TestGenerate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := gemini.New(gemini.Config{BaseURL: url, APIKey: "k"})
	_, err := c.Generate(context.Background(), providers.Request{Model: "m", Prompt: "p"})

	var terr *providers.TransportError
	require.True(t, errors.As(err, &terr))
	assert.NotNil(t, errors.Unwrap(terr))
}
