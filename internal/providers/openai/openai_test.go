package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/internal/core"
	"clarifyai/internal/providers"
)

func TestStreamChatCompletion_RequestShape(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get("X-Client-Request-Id"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := New("sk-test", providers.ProviderOptions{HTTPClient: server.Client(), BaseURL: server.URL})
	temp, maxTokens := 0.7, 2000
	ctx := core.WithRequestID(context.Background(), "req-1")

	stream, err := p.StreamChatCompletion(ctx, &core.ChatRequest{
		SystemPrompt: "You are a campus assistant.",
		Temperature:  &temp,
		MaxTokens:    &maxTokens,
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "hi"},
			{Role: core.RoleAssistant, Content: "hello"},
			{Role: core.RoleUser, Content: "library hours?"},
		},
	})
	require.NoError(t, err)
	_ = stream.Close()

	assert.Equal(t, defaultModel, body["model"])
	assert.Equal(t, true, body["stream"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	assert.InDelta(t, 2000, body["max_tokens"], 1e-9)

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 4)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are a campus assistant.", first["content"])
	last := messages[3].(map[string]interface{})
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "library hours?", last["content"])
}

func TestStreamChatCompletion_MissingKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, key := range []string{"", "   "} {
		p := New(key, providers.ProviderOptions{HTTPClient: server.Client(), BaseURL: server.URL})
		_, err := p.StreamChatCompletion(context.Background(), &core.ChatRequest{
			Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
		})

		var gwErr *core.GatewayError
		require.True(t, errors.As(err, &gwErr), "key %q", key)
		assert.Equal(t, core.ErrorTypeConfiguration, gwErr.Type)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestStreamChatCompletion_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
	}))
	defer server.Close()

	p := New("sk", providers.ProviderOptions{HTTPClient: server.Client(), BaseURL: server.URL})
	_, err := p.StreamChatCompletion(context.Background(), &core.ChatRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
	})

	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.ErrorTypeRateLimit, gwErr.Type)
	assert.True(t, strings.Contains(gwErr.Message, "429"))
}

func TestProviderMetadata(t *testing.T) {
	p := New("k", providers.ProviderOptions{})
	assert.Equal(t, "openai", p.Name())
	text, err := p.ParseChunk(`{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`)
	require.NoError(t, err)
	assert.Equal(t, "Hi", text)
	assert.Equal(t, defaultBaseURL, p.(*Provider).client.BaseURL())
}

func TestIsValidClientRequestID(t *testing.T) {
	assert.True(t, isValidClientRequestID("abc-123"))
	assert.False(t, isValidClientRequestID("héllo"))
	assert.False(t, isValidClientRequestID(strings.Repeat("a", 513)))
}
