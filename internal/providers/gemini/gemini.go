// Package gemini provides the adapter for Google's native Gemini streaming API.
package gemini

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"clarifyai/internal/core"
	"clarifyai/internal/llmclient"
	"clarifyai/internal/providers"
)

// Registration provides factory registration for the Gemini provider.
var Registration = providers.Registration{
	Type: "gemini",
	New:  New,
}

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash-exp"

	// partsPath collects the text of every part of the first candidate
	partsPath = "candidates.0.content.parts.#.text"

	roleModel = "model"
)

// Provider implements the core.Provider interface for Google Gemini
type Provider struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new Gemini provider
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

// blockedFinishReasons end a candidate without a usable answer.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"LANGUAGE":           true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// ParseChunk joins the text parts of one GenerateContentResponse.
// A blocked prompt or a candidate stopped by a safety filter is an upstream error.
func (p *Provider) ParseChunk(payload string) (string, error) {
	if reason := gjson.Get(payload, "promptFeedback.blockReason").String(); reason != "" {
		return "", core.NewUpstreamError(providerName, "the question was blocked by the vendor ("+reason+")")
	}

	candidate := gjson.Get(payload, "candidates.0")
	if reason := candidate.Get("finishReason").String(); blockedFinishReasons[reason] {
		return "", core.NewUpstreamError(providerName, "the reply was blocked by the vendor ("+reason+")")
	}

	var b strings.Builder
	for _, text := range gjson.Get(payload, partsPath).Array() {
		b.WriteString(text.String())
	}
	return b.String(), nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.apiKey)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// convertRequest maps the vendor-neutral request onto Gemini's wire format.
// Gemini names the assistant role "model" and carries the system prompt out of band.
func convertRequest(req *core.ChatRequest) *generateContentRequest {
	out := &generateContentRequest{
		Contents: make([]content, 0, len(req.Messages)),
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	for _, m := range req.Messages {
		role := core.RoleUser
		if m.Role == core.RoleAssistant {
			role = roleModel
		}
		out.Contents = append(out.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return out
}

// StreamChatCompletion opens a streamGenerateContent request in SSE mode (caller must close)
func (p *Provider) StreamChatCompletion(ctx context.Context, req *core.ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, core.NewConfigurationError(providerName, "Gemini API key is not configured. Set GEMINI_API_KEY in the environment or .env file.")
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	return p.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse",
		Body:     convertRequest(req),
	})
}
