package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicProvider handles Anthropic Claude API requests
type AnthropicProvider struct {
	http *resty.Client
}

// AnthropicRequest represents a request to Anthropic's Messages API
type AnthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []AnthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	System      string             `json:"system,omitempty"`
}

// AnthropicMessage represents a message in Anthropic format
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse represents a response from Anthropic's API
type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicUsage          `json:"usage"`
}

// AnthropicContentBlock represents a content block
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicUsage represents token usage
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", "2023-06-01")

	return &AnthropicProvider{http: client}
}

// Provider returns the backend this client is bound to
func (p *AnthropicProvider) Provider() Provider {
	return Anthropic
}

// Generate makes a Messages API request to Anthropic
func (p *AnthropicProvider) Generate(ctx context.Context, req GenerationRequest) (*Completion, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(p.convertRequest(req)).
		Post("/v1/messages")
	if err != nil {
		return nil, transportError(Anthropic, err)
	}

	if resp.IsError() {
		kind, detail := classifyAnthropicError(resp.StatusCode(), resp.Body())
		return nil, newError(Anthropic, kind, resp.StatusCode(), detail, nil)
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(resp.Body(), &anthropicResp); err != nil {
		return nil, newError(Anthropic, KindProviderUnavailable, resp.StatusCode(), "failed to parse response", err)
	}

	if anthropicResp.StopReason == "refusal" {
		return nil, newError(Anthropic, KindContentBlocked, resp.StatusCode(), "stop_reason=refusal", nil)
	}

	return p.convertResponse(anthropicResp), nil
}

// convertRequest converts to Anthropic format. Anthropic gets temperature
// 0.7 and max_tokens 1024 by default; top_p is only sent when set.
func (p *AnthropicProvider) convertRequest(req GenerationRequest) AnthropicRequest {
	temperature := floatOr(req.Temperature, 0.7)
	return AnthropicRequest{
		Model: req.Model,
		Messages: []AnthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   intOr(req.MaxTokens, 1024),
		Temperature: &temperature,
		TopP:        req.TopP,
		System:      req.SystemPrompt,
	}
}

// convertResponse converts Anthropic response to standard format
func (p *AnthropicProvider) convertResponse(resp AnthropicResponse) *Completion {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Completion{
		Content:      content.String(),
		Model:        resp.Model,
		FinishReason: resp.StopReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
