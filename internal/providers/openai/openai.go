// Package openai provides the adapter for OpenAI and OpenAI-compatible chat completion APIs.
package openai

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"clarifyai/internal/core"
	"clarifyai/internal/llmclient"
	"clarifyai/internal/providers"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type: "openai",
	New:  New,
}

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// deltaPath locates the text fragment inside one chat.completion.chunk
	deltaPath = "choices.0.delta.content"
)

// Provider implements the core.Provider interface for OpenAI
type Provider struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new OpenAI provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	p := &Provider{apiKey: apiKey}
	p.client = llmclient.New(opts.HTTPClient, llmclient.Config{
		ProviderName: providerName,
		BaseURL:      defaultBaseURL,
	}, p.setHeaders)
	if opts.BaseURL != "" {
		p.client.SetBaseURL(opts.BaseURL)
	}
	return p
}

// Name returns the vendor name.
func (p *Provider) Name() string { return providerName }

// ParseChunk returns the content delta of one chat.completion.chunk.
func (p *Provider) ParseChunk(payload string) (string, error) {
	return gjson.Get(payload, deltaPath).String(), nil
}

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	// OpenAI rejects non-ASCII or overlong X-Client-Request-Id values with a 400.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []core.Message `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream"`
}

// convertRequest prepends the system prompt as a system message.
func convertRequest(req *core.ChatRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	messages := make([]core.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	return &chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
}

// StreamChatCompletion opens a streaming chat completion (caller must close the stream)
func (p *Provider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, core.NewConfigurationError(providerName, "OpenAI API key is not configured. Set OPENAI_API_KEY in the environment or .env file.")
	}
	return p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     convertRequest(req),
	})
}
