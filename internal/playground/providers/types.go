package providers

import (
	"context"

	"github.com/mrmushfiq/promptlib/internal/playground/catalog"
)

// Provider identifies one AI backend. The zero value is not a valid provider.
type Provider int

const (
	Google Provider = iota + 1
	Anthropic
	OpenAI
	OpenRouter
)

// All lists every provider the playground can route to.
func All() []Provider {
	return []Provider{Google, Anthropic, OpenAI, OpenRouter}
}

// ParseProvider maps a catalog provider name to a Provider.
func ParseProvider(name string) (Provider, bool) {
	switch name {
	case catalog.ProviderGoogle:
		return Google, true
	case catalog.ProviderAnthropic:
		return Anthropic, true
	case catalog.ProviderOpenAI:
		return OpenAI, true
	case catalog.ProviderOpenRouter:
		return OpenRouter, true
	}
	return 0, false
}

// String returns the catalog name of the provider.
func (p Provider) String() string {
	switch p {
	case Google:
		return catalog.ProviderGoogle
	case Anthropic:
		return catalog.ProviderAnthropic
	case OpenAI:
		return catalog.ProviderOpenAI
	case OpenRouter:
		return catalog.ProviderOpenRouter
	}
	return "unknown"
}

// DisplayName is the vendor name shown in error messages.
func (p Provider) DisplayName() string {
	switch p {
	case Google:
		return "Google AI"
	case Anthropic:
		return "Anthropic"
	case OpenAI:
		return "OpenAI"
	case OpenRouter:
		return "OpenRouter"
	}
	return "Unknown provider"
}

// EnvVar is the environment variable holding the provider's API key.
func (p Provider) EnvVar() string {
	switch p {
	case Google:
		return "GEMINI_API_KEY"
	case Anthropic:
		return "ANTHROPIC_API_KEY"
	case OpenAI:
		return "OPENAI_API_KEY"
	case OpenRouter:
		return "OPENROUTER_API_KEY"
	}
	return ""
}

// GenerationRequest is a single-turn playground request. Optional sampling
// parameters are nil when the caller did not set them.
type GenerationRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	SystemPrompt     string   `json:"system_prompt,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// Usage holds token counts reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a successful provider response.
type Completion struct {
	Content      string
	Model        string
	Usage        Usage
	FinishReason string
}

// Client is implemented by every provider adapter. Generate returns either a
// Completion or an *Error carrying a normalized ErrorKind.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) (*Completion, error)
	Provider() Provider
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}
