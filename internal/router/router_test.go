package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regstudio/internal/metrics"
	"regstudio/internal/providers"
)

type fakeUpstream struct {
	srv      *httptest.Server
	calls    atomic.Int32
	lastKey  atomic.Value
	lastBody atomic.Value
}

func newFakeUpstream(t *testing.T, status int, body string) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		key := r.Header.Get("x-goog-api-key")
		if key == "" {
			key = r.Header.Get("Authorization")
		}
		f.lastKey.Store(key)
		raw, _ := io.ReadAll(r.Body)
		f.lastBody.Store(raw)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) body(t *testing.T) map[string]any {
	t.Helper()
	raw, _ := f.lastBody.Load().([]byte)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func newRouter(geminiKey string, gem, oai *fakeUpstream) *Router {
	cfg := Config{
		GeminiKey: geminiKey,
		Logger:    zerolog.Nop(),
		Metrics:   metrics.New(),
	}
	if gem != nil {
		cfg.GeminiBaseURL = gem.srv.URL
	}
	if oai != nil {
		cfg.OpenAIBaseURL = oai.srv.URL
	}
	return New(cfg)
}

func TestOpenAIWithoutOverrideFailsBeforeNetwork(t *testing.T) {
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"Hello"}}]}`)
	r := newRouter("ambient-gemini-key", nil, oai)

	_, err := r.GenerateText(context.Background(), "hi", "", AIConfig{Provider: providers.KindOpenAI})

	var missing *providers.MissingCredentialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, providers.KindOpenAI, missing.Provider)
	assert.EqualValues(t, 0, oai.calls.Load())
	assert.EqualValues(t, 1, testutil.ToFloat64(r.metrics.AIRequests.WithLabelValues("openai", "missing_credential")))
}

func TestGeminiWithoutAnyKeyFails(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"text":"x"}`)
	r := newRouter("", gem, nil)

	_, err := r.GenerateText(context.Background(), "hi", "  ", AIConfig{})

	var missing *providers.MissingCredentialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, providers.KindGemini, missing.Provider)
	assert.EqualValues(t, 0, gem.calls.Load())
}

func TestUnsupportedProviderRejectedWithOrWithoutKey(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"text":"x"}`)
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`)
	r := newRouter("ambient-key", gem, oai)

	for _, key := range []string{"", "sk-user"} {
		_, err := r.GenerateText(context.Background(), "hi", key, AIConfig{Provider: "anthropic"})
		require.ErrorIs(t, err, providers.ErrUnsupportedProvider, "key %q", key)

		var missing *providers.MissingCredentialError
		assert.False(t, errors.As(err, &missing))
	}
	assert.EqualValues(t, 0, gem.calls.Load()+oai.calls.Load())
}

func TestProviderNameMatchesCaseInsensitively(t *testing.T) {
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"Hello"}}]}`)
	r := newRouter("", nil, oai)

	text, err := r.GenerateText(context.Background(), "hi", "sk-user", AIConfig{Provider: "OpenAI"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.EqualValues(t, 1, testutil.ToFloat64(r.metrics.AIRequests.WithLabelValues("openai", "ok")))
}

func TestGeminiUsesAmbientKey(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"ok"}]}}]}`)
	r := newRouter("ambient-key", gem, nil)

	text, err := r.GenerateText(context.Background(), "hi", "", AIConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "ambient-key", gem.lastKey.Load())
}

func TestOverrideKeyWinsOverAmbient(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"text":"ok"}`)
	r := newRouter("ambient-key", gem, nil)

	_, err := r.GenerateText(context.Background(), "hi", "user-key", AIConfig{Provider: providers.KindGemini})
	require.NoError(t, err)
	assert.Equal(t, "user-key", gem.lastKey.Load())
}

func TestOpenAIResponseText(t *testing.T) {
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"Hello"}}]}`)
	r := newRouter("", nil, oai)

	text, err := r.GenerateText(context.Background(), "hi", "sk-user", AIConfig{Provider: providers.KindOpenAI})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "Bearer sk-user", oai.lastKey.Load())
}

func TestGeminiSafetyHalt(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"candidates":[{"finishReason":"SAFETY"}]}`)
	r := newRouter("k", gem, nil)

	_, err := r.GenerateText(context.Background(), "hi", "", AIConfig{})

	var halted *providers.GenerationHaltedError
	require.True(t, errors.As(err, &halted))
	assert.Equal(t, "SAFETY", halted.Reason)
	assert.EqualValues(t, 1, testutil.ToFloat64(r.metrics.AIRequests.WithLabelValues("gemini", "halted")))
}

func TestProviderErrorsCarryBodyMessage(t *testing.T) {
	errBody := `{"error":{"message":"quota exceeded"}}`
	gem := newFakeUpstream(t, http.StatusTooManyRequests, errBody)
	oai := newFakeUpstream(t, http.StatusForbidden, errBody)
	r := newRouter("k", gem, oai)

	for _, kind := range []providers.Kind{providers.KindGemini, providers.KindOpenAI} {
		_, err := r.GenerateText(context.Background(), "hi", "k", AIConfig{Provider: kind})

		var perr *providers.ProviderError
		require.True(t, errors.As(err, &perr), kind)
		assert.Equal(t, kind, perr.Provider)
		assert.Equal(t, "quota exceeded", perr.Message)
	}
	assert.EqualValues(t, 1, gem.calls.Load())
	assert.EqualValues(t, 1, oai.calls.Load())
}

func TestDefaultsApplied(t *testing.T) {
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`)
	r := newRouter("", nil, oai)

	_, err := r.GenerateText(context.Background(), "hi", "k", AIConfig{Provider: providers.KindOpenAI})
	require.NoError(t, err)

	body := oai.body(t)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
	assert.EqualValues(t, DefaultTemperature, body["temperature"])
}

func TestExplicitZeroTemperatureKept(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"text":"x"}`)
	r := newRouter("k", gem, nil)

	zero := 0.0
	_, err := r.GenerateText(context.Background(), "hi", "", AIConfig{Temperature: &zero, MaxTokens: 512, Model: "gemini-2.5-flash-lite"})
	require.NoError(t, err)

	gc := gem.body(t)["generationConfig"].(map[string]any)
	assert.EqualValues(t, 0, gc["temperature"])
	assert.EqualValues(t, 512, gc["maxOutputTokens"])
}

func TestJSONModePerProvider(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"text":"{}"}`)
	oai := newFakeUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`)
	r := newRouter("k", gem, oai)
	cfg := AIConfig{ResponseMimeType: providers.MimeJSON}

	_, err := r.GenerateText(context.Background(), "hi", "", cfg)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gem.body(t)["generationConfig"].(map[string]any)["responseMimeType"])

	cfg.Provider = providers.KindOpenAI
	_, err = r.GenerateText(context.Background(), "hi", "k", cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, oai.body(t)["response_format"])
}

func TestRepeatedCallsAreIdentical(t *testing.T) {
	gem := newFakeUpstream(t, http.StatusOK, `{"candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"same"}]}}]}`)
	r := newRouter("k", gem, nil)
	cfg := AIConfig{Model: "gemini-2.5-flash", MaxTokens: 100}

	first, err1 := r.GenerateText(context.Background(), "hi", "", cfg)
	firstBody := gem.body(t)
	second, err2 := r.GenerateText(context.Background(), "hi", "", cfg)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, firstBody, gem.body(t))
}

func TestHasAmbientKey(t *testing.T) {
	r := newRouter("k", nil, nil)
	assert.True(t, r.HasAmbientKey(providers.KindGemini))
	assert.False(t, r.HasAmbientKey(providers.KindOpenAI))
	assert.False(t, newRouter("", nil, nil).HasAmbientKey(providers.KindGemini))
}
