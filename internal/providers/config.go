package providers

import (
	"strings"

	"clarifyai/config"
)

// Config is the resolved vendor selection used to build the relay's adapter.
type Config struct {
	Type    string
	APIKey  string
	BaseURL string
	Model   string
}

// defaultModels holds the model used when none is configured, per vendor type.
var defaultModels = map[string]string{
	"gemini": config.DefaultGeminiModel,
	"openai": config.DefaultOpenAIModel,
}

// ResolveConfig picks the credentials of the configured vendor out of the LLM settings.
// Keys are trimmed so a whitespace-only value counts as missing.
func ResolveConfig(llm config.LLMConfig) Config {
	var vendor config.VendorConfig
	switch llm.Provider {
	case "openai":
		vendor = llm.OpenAI
	case "gemini":
		vendor = llm.Gemini
	}

	model := strings.TrimSpace(llm.Model)
	if model == "" {
		model = defaultModels[llm.Provider]
	}

	return Config{
		Type:    llm.Provider,
		APIKey:  strings.TrimSpace(vendor.APIKey),
		BaseURL: strings.TrimRight(strings.TrimSpace(vendor.BaseURL), "/"),
		Model:   model,
	}
}
