package providers

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/config"
	"clarifyai/internal/core"
)

type stubProvider struct {
	apiKey string
	opts   ProviderOptions
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) ParseChunk(payload string) (string, error) { return payload, nil }

func (s *stubProvider) StreamChatCompletion(context.Context, *core.ChatRequest) (io.ReadCloser, error) {
	return nil, nil
}

func TestProviderFactory_Create(t *testing.T) {
	factory := NewProviderFactory()
	factory.Add(Registration{Type: "stub", New: func(apiKey string, opts ProviderOptions) core.Provider {
		return &stubProvider{apiKey: apiKey, opts: opts}
	}})

	t.Run("known type", func(t *testing.T) {
		p, err := factory.Create(Config{Type: "stub", APIKey: "k", BaseURL: "http://local"}, nil)
		require.NoError(t, err)
		stub := p.(*stubProvider)
		assert.Equal(t, "k", stub.apiKey)
		assert.Equal(t, "http://local", stub.opts.BaseURL)
	})

	t.Run("blank key still builds", func(t *testing.T) {
		p, err := factory.Create(Config{Type: "stub"}, nil)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := factory.Create(Config{Type: "anthropic"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic")
		assert.Contains(t, err.Error(), "registered: stub")
	})
}

func TestProviderFactory_ListRegistered(t *testing.T) {
	factory := NewProviderFactory()
	for _, name := range []string{"openai", "gemini"} {
		factory.Add(Registration{Type: name, New: func(string, ProviderOptions) core.Provider { return &stubProvider{} }})
	}
	assert.Equal(t, []string{"gemini", "openai"}, factory.ListRegistered())
}

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name string
		llm  config.LLMConfig
		want Config
	}{
		{
			name: "gemini with default model",
			llm:  config.LLMConfig{Provider: "gemini", Gemini: config.VendorConfig{APIKey: " g-key "}},
			want: Config{Type: "gemini", APIKey: "g-key", Model: config.DefaultGeminiModel},
		},
		{
			name: "openai with explicit model and base url",
			llm: config.LLMConfig{
				Provider: "openai",
				Model:    "gpt-4o",
				OpenAI:   config.VendorConfig{APIKey: "sk", BaseURL: "https://gateway.local/v1/"},
				Gemini:   config.VendorConfig{APIKey: "ignored"},
			},
			want: Config{Type: "openai", APIKey: "sk", BaseURL: "https://gateway.local/v1", Model: "gpt-4o"},
		},
		{
			name: "whitespace key counts as missing",
			llm:  config.LLMConfig{Provider: "openai", OpenAI: config.VendorConfig{APIKey: "   "}},
			want: Config{Type: "openai", Model: config.DefaultOpenAIModel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveConfig(tt.llm))
		})
	}
}
