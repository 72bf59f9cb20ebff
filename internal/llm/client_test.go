package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerate(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","content":[{"type":"text","text":"{\"risk_level\":"},{"type":"text","text":"\"SAFE\"}"}]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient("secret", "", server.URL)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "judge this", GenerationParams{
		Temperature: Float32(0.3),
		MaxTokens:   Int(2000),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"risk_level":"SAFE"}`, out)
	assert.Equal(t, DefaultAnthropicModel, got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 0.0001)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "judge this", got.Messages[0].Content)
}

func TestAnthropicNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewAnthropicClient("secret", "m", server.URL)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAnthropicEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient("secret", "m", server.URL)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", GenerationParams{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("key", "llama-3.3-70b", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b", client.Model())

	out, err := client.Generate(context.Background(), "x", GenerationParams{Temperature: Float32(0.3)})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		_, _ = w.Write([]byte(`{"response":"  {\"risk_level\":\"CAUTION\"} ","done":true}`))
	}))
	defer server.Close()

	out, err := NewOllamaClient(server.URL, "").Generate(context.Background(), "x", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, `{"risk_level":"CAUTION"}`, out)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Config{Provider: ProviderDisabled})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = NewClient(Config{Provider: ProviderAnthropic})
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: "bard"})
	assert.Error(t, err)

	c, err = NewClient(Config{Provider: ProviderOllama, Model: "phi3"})
	require.NoError(t, err)
	assert.Equal(t, "phi3", c.Model())
}
