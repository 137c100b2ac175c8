// Package catalog holds the static table of models the playground can run.
package catalog

import "sort"

// Provider names as they appear in the catalog table.
const (
	ProviderGoogle     = "google"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// ModelDescriptor describes one addressable model variant.
type ModelDescriptor struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	Provider          string `json:"provider"`
	MaxOutputTokens   int    `json:"max_output_tokens"`
	SupportsStreaming bool   `json:"supports_streaming"`
	Category          string `json:"category"`
	IsLatest          bool   `json:"is_latest"`
	IsExperimental    bool   `json:"is_experimental"`
}

var models = []ModelDescriptor{
	// Google
	{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Provider: ProviderGoogle, MaxOutputTokens: 65536, SupportsStreaming: true, Category: "reasoning", IsLatest: true},
	{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Provider: ProviderGoogle, MaxOutputTokens: 65536, SupportsStreaming: true, Category: "fast", IsLatest: true},
	{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", Provider: ProviderGoogle, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "fast"},
	{ID: "gemini-2.0-flash-exp", DisplayName: "Gemini 2.0 Flash (Experimental)", Provider: ProviderGoogle, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "fast", IsExperimental: true},
	{ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Provider: ProviderGoogle, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "general"},

	// Anthropic
	{ID: "claude-opus-4-5-20251101", DisplayName: "Claude Opus 4.5", Provider: ProviderAnthropic, MaxOutputTokens: 32000, SupportsStreaming: true, Category: "reasoning", IsLatest: true},
	{ID: "claude-sonnet-4-5-20250929", DisplayName: "Claude Sonnet 4.5", Provider: ProviderAnthropic, MaxOutputTokens: 64000, SupportsStreaming: true, Category: "general", IsLatest: true},
	{ID: "claude-haiku-4-5-20251001", DisplayName: "Claude Haiku 4.5", Provider: ProviderAnthropic, MaxOutputTokens: 64000, SupportsStreaming: true, Category: "fast", IsLatest: true},
	{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "general"},
	{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", Provider: ProviderAnthropic, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "fast"},

	// OpenAI
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, MaxOutputTokens: 16384, SupportsStreaming: true, Category: "general", IsLatest: true},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, MaxOutputTokens: 16384, SupportsStreaming: true, Category: "fast", IsLatest: true},
	{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: ProviderOpenAI, MaxOutputTokens: 4096, SupportsStreaming: true, Category: "general"},
	{ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: ProviderOpenAI, MaxOutputTokens: 4096, SupportsStreaming: true, Category: "fast"},

	// OpenRouter
	{ID: "meta-llama/llama-3.3-70b-instruct", DisplayName: "Llama 3.3 70B Instruct", Provider: ProviderOpenRouter, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "open", IsLatest: true},
	{ID: "mistralai/mistral-large", DisplayName: "Mistral Large", Provider: ProviderOpenRouter, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "open"},
	{ID: "deepseek/deepseek-chat", DisplayName: "DeepSeek V3", Provider: ProviderOpenRouter, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "open", IsLatest: true},
	{ID: "qwen/qwen-2.5-72b-instruct", DisplayName: "Qwen 2.5 72B Instruct", Provider: ProviderOpenRouter, MaxOutputTokens: 8192, SupportsStreaming: true, Category: "open"},
	{ID: "google/gemma-2-9b-it:free", DisplayName: "Gemma 2 9B (free)", Provider: ProviderOpenRouter, MaxOutputTokens: 4096, SupportsStreaming: false, Category: "open", IsExperimental: true},
}

var byID = func() map[string]ModelDescriptor {
	m := make(map[string]ModelDescriptor, len(models))
	for _, d := range models {
		m[d.ID] = d
	}
	return m
}()

// Lookup returns the descriptor for a model id.
func Lookup(id string) (ModelDescriptor, bool) {
	d, ok := byID[id]
	return d, ok
}

// All returns a copy of the catalog sorted by provider, then id.
func All() []ModelDescriptor {
	out := make([]ModelDescriptor, len(models))
	copy(out, models)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}
