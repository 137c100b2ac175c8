package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider handles Google Gemini API requests
type GeminiProvider struct {
	http *resty.Client
}

// GeminiRequest represents a request to Gemini's API
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent represents content in Gemini format
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiGenerationConfig represents generation parameters
type GeminiGenerationConfig struct {
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"topP"`
	MaxOutputTokens  int      `json:"maxOutputTokens"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
}

// GeminiResponse represents a response from Gemini API
type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata GeminiUsage       `json:"usageMetadata"`
	ModelVersion  string            `json:"modelVersion"`
}

// GeminiCandidate represents a candidate response
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

// GeminiUsage represents token usage
type GeminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, baseURL string) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", apiKey)

	return &GeminiProvider{http: client}
}

// Provider returns the backend this client is bound to
func (p *GeminiProvider) Provider() Provider {
	return Google
}

// Generate makes a generateContent request to Gemini
func (p *GeminiProvider) Generate(ctx context.Context, req GenerationRequest) (*Completion, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetPathParam("model", req.Model).
		SetBody(p.convertRequest(req)).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return nil, transportError(Google, err)
	}

	if resp.IsError() {
		kind, detail := classifyGeminiError(resp.StatusCode(), resp.Body())
		return nil, newError(Google, kind, resp.StatusCode(), detail, nil)
	}

	if reason, blocked := geminiBlockReason(resp.Body()); blocked {
		return nil, newError(Google, KindContentBlocked, resp.StatusCode(), "blocked: "+reason, nil)
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(resp.Body(), &geminiResp); err != nil {
		return nil, newError(Google, KindProviderUnavailable, resp.StatusCode(), "failed to parse response", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, newError(Google, KindProviderUnavailable, resp.StatusCode(), "response contained no candidates", nil)
	}

	return p.convertResponse(geminiResp, req.Model), nil
}

// convertRequest converts to Gemini format with Google-style defaults:
// temperature 0.7, topP 0.8, maxOutputTokens 1024.
func (p *GeminiProvider) convertRequest(req GenerationRequest) GeminiRequest {
	geminiReq := GeminiRequest{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &GeminiGenerationConfig{
			Temperature:      floatOr(req.Temperature, 0.7),
			TopP:             floatOr(req.TopP, 0.8),
			MaxOutputTokens:  intOr(req.MaxTokens, 1024),
			FrequencyPenalty: req.FrequencyPenalty,
			PresencePenalty:  req.PresencePenalty,
		},
	}

	if req.SystemPrompt != "" {
		geminiReq.SystemInstruction = &GeminiContent{
			Parts: []GeminiPart{{Text: req.SystemPrompt}},
		}
	}

	return geminiReq
}

// convertResponse converts Gemini response to standard format
func (p *GeminiProvider) convertResponse(resp GeminiResponse, model string) *Completion {
	candidate := resp.Candidates[0]

	var content strings.Builder
	for _, part := range candidate.Content.Parts {
		content.WriteString(part.Text)
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &Completion{
		Content:      content.String(),
		Model:        model,
		FinishReason: strings.ToLower(candidate.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}
}
