package router

import "github.com/mrmushfiq/promptlib/internal/playground/providers"

// GenerationResult is the uniform outcome of a playground run. Exactly one
// of Error and Usage is set; Content is empty whenever Error is set.
type GenerationResult struct {
	Content      string              `json:"content"`
	Model        string              `json:"model"`
	Provider     string              `json:"provider,omitempty"`
	Usage        *providers.Usage    `json:"usage,omitempty"`
	FinishReason string              `json:"finish_reason,omitempty"`
	Error        string              `json:"error,omitempty"`
	ErrorKind    providers.ErrorKind `json:"error_kind,omitempty"`
	LatencyMs    int64               `json:"latency_ms"`
}

// Failed reports whether the run ended in an error.
func (g GenerationResult) Failed() bool {
	return g.Error != ""
}

func providerName(p providers.Provider) string {
	if p == 0 {
		return ""
	}
	return p.String()
}

func success(model string, p providers.Provider, c *providers.Completion) GenerationResult {
	usage := c.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return GenerationResult{
		Content:      c.Content,
		Model:        model,
		Provider:     providerName(p),
		Usage:        &usage,
		FinishReason: c.FinishReason,
	}
}

// failure drops any partial output; callers only ever see the message.
func failure(model string, p providers.Provider, kind providers.ErrorKind, message string) GenerationResult {
	if message == "" {
		message = "generation failed"
	}
	return GenerationResult{
		Model:     model,
		Provider:  providerName(p),
		Error:     message,
		ErrorKind: kind,
	}
}
