package providers

import (
	"context"
	"math"

	"github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
// It serves both OpenAI and OpenRouter.
type OpenAIProvider struct {
	client   *openai.Client
	provider Provider
}

// NewOpenAIProvider creates a new OpenAI provider. An empty baseURL uses
// the public API.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(cfg),
		provider: OpenAI,
	}
}

// NewOpenRouterProvider creates an OpenRouter provider on top of the same
// OpenAI-compatible client.
func NewOpenRouterProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(cfg),
		provider: OpenRouter,
	}
}

// Provider returns the backend this client is bound to
func (p *OpenAIProvider) Provider() Provider {
	return p.provider
}

// Generate makes a chat completion request
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerationRequest) (*Completion, error) {
	openaiReq := p.convertRequest(req)

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		kind, status, detail := classifyOpenAIError(err)
		if kind == "" {
			return nil, transportError(p.provider, err)
		}
		return nil, newError(p.provider, kind, status, detail, err)
	}

	if len(resp.Choices) == 0 {
		return nil, newError(p.provider, KindProviderUnavailable, 200, "response contained no choices", nil)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, newError(p.provider, KindContentBlocked, 200, "finish_reason=content_filter", nil)
	}

	return &Completion{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// convertRequest applies OpenAI-style defaults: temperature 0.7, top_p 1,
// max_tokens 1000.
func (p *OpenAIProvider) convertRequest(req GenerationRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	openaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: nonZero(floatOr(req.Temperature, 0.7)),
		TopP:        nonZero(floatOr(req.TopP, 1)),
		MaxTokens:   intOr(req.MaxTokens, 1000),
	}
	if req.FrequencyPenalty != nil {
		openaiReq.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		openaiReq.PresencePenalty = float32(*req.PresencePenalty)
	}
	return openaiReq
}

// nonZero keeps an explicit 0 from being dropped by the client's omitempty
// JSON tags.
func nonZero(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}
