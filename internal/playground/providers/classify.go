package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

var (
	quotaPhrases = []string{
		"insufficient_quota", "exceeded your current quota", "billing", "credit balance",
		"insufficient credits", "quota exceeded", "payment required",
	}
	contextPhrases = []string{
		"context_length_exceeded", "maximum context length", "prompt is too long",
		"too many tokens", "exceeds the maximum number of tokens", "context window",
		"input token count", "reduce the length",
	}
	blockedPhrases = []string{
		"content_policy", "content policy", "content_filter", "content filtering", "safety",
		"flagged", "moderation",
	}
	credentialPhrases = []string{
		"invalid_api_key", "incorrect api key", "api key not valid", "invalid x-api-key",
		"api_key_invalid", "no auth credentials", "unauthorized",
	}
	notFoundPhrases = []string{
		"model_not_found", "does not exist", "not_found_error", "is not found",
		"no endpoints found", "unknown model",
	}
	ratePhrases = []string{"rate limit", "rate_limit", "too many requests"}

	// openAICodes maps the structured error.code and error.type values of
	// OpenAI-compatible APIs. They win over the message, which often points
	// at billing pages even for plain rate limits.
	openAICodes = map[string]ErrorKind{
		"rate_limit_exceeded":      KindRateLimited,
		"insufficient_quota":       KindQuotaExceeded,
		"context_length_exceeded":  KindContextTooLong,
		"content_policy_violation": KindContentBlocked,
		"invalid_api_key":          KindInvalidCredentials,
		"model_not_found":          KindModelNotFound,
	}
)

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// classifyMessage recognizes a kind from provider error text alone.
func classifyMessage(message string) (ErrorKind, bool) {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, quotaPhrases):
		return KindQuotaExceeded, true
	case containsAny(msg, contextPhrases):
		return KindContextTooLong, true
	case containsAny(msg, blockedPhrases):
		return KindContentBlocked, true
	case containsAny(msg, credentialPhrases):
		return KindInvalidCredentials, true
	case containsAny(msg, notFoundPhrases):
		return KindModelNotFound, true
	case containsAny(msg, ratePhrases):
		return KindRateLimited, true
	}
	return "", false
}

// classifyStatus is the fallback when the message says nothing specific.
func classifyStatus(status int) ErrorKind {
	switch status {
	case 401, 403:
		return KindInvalidCredentials
	case 402:
		return KindQuotaExceeded
	case 404:
		return KindModelNotFound
	case 413:
		return KindContextTooLong
	case 429:
		return KindRateLimited
	}
	return KindProviderUnavailable
}

// classify combines status and message. Server-side failures are always
// reported as unavailability regardless of their text.
func classify(status int, message string) ErrorKind {
	if status >= 500 {
		return KindProviderUnavailable
	}
	if kind, ok := classifyMessage(message); ok {
		return kind
	}
	return classifyStatus(status)
}

// classifyOpenAIError handles errors from the go-openai client, which is
// used for both OpenAI and OpenRouter.
func classifyOpenAIError(err error) (ErrorKind, int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := openAICodeKind(apiErr); ok {
			return kind, apiErr.HTTPStatusCode, apiErr.Message
		}
		text := apiErr.Message
		if apiErr.Code != nil {
			text = fmt.Sprintf("%v %s", apiErr.Code, text)
		}
		if apiErr.Type != "" {
			text = apiErr.Type + " " + text
		}
		return classify(apiErr.HTTPStatusCode, text), apiErr.HTTPStatusCode, text
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		text := reqErr.Error()
		return classify(reqErr.HTTPStatusCode, text), reqErr.HTTPStatusCode, text
	}

	return "", 0, err.Error()
}

func openAICodeKind(apiErr *openai.APIError) (ErrorKind, bool) {
	if apiErr.HTTPStatusCode >= 500 {
		return "", false
	}
	if code, ok := apiErr.Code.(string); ok {
		if kind, ok := openAICodes[code]; ok {
			return kind, true
		}
	}
	kind, ok := openAICodes[apiErr.Type]
	return kind, ok
}

// classifyAnthropicError classifies a non-2xx Messages API response.
//
//	{"type":"error","error":{"type":"rate_limit_error","message":"..."}}
func classifyAnthropicError(status int, body []byte) (ErrorKind, string) {
	errType := gjson.GetBytes(body, "error.type").String()
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = string(body)
	}

	switch errType {
	case "authentication_error", "permission_error":
		return KindInvalidCredentials, message
	case "not_found_error":
		return KindModelNotFound, message
	case "rate_limit_error":
		return KindRateLimited, message
	case "overloaded_error", "api_error":
		return KindProviderUnavailable, message
	case "request_too_large":
		return KindContextTooLong, message
	case "invalid_request_error":
		if kind, ok := classifyMessage(message); ok {
			return kind, message
		}
		return KindProviderUnavailable, message
	}
	return classify(status, message), message
}

// classifyGeminiError classifies a non-2xx generateContent response.
//
//	{"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED","details":[...]}}
func classifyGeminiError(status int, body []byte) (ErrorKind, string) {
	grpcStatus := gjson.GetBytes(body, "error.status").String()
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = string(body)
	}

	for _, reason := range gjson.GetBytes(body, "error.details.#.reason").Array() {
		if reason.String() == "API_KEY_INVALID" {
			return KindInvalidCredentials, message
		}
	}

	switch grpcStatus {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return KindInvalidCredentials, message
	case "NOT_FOUND":
		return KindModelNotFound, message
	case "RESOURCE_EXHAUSTED":
		if containsAny(strings.ToLower(message), quotaPhrases) {
			return KindQuotaExceeded, message
		}
		return KindRateLimited, message
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		if kind, ok := classifyMessage(message); ok {
			return kind, message
		}
		return KindProviderUnavailable, message
	}
	return classify(status, message), message
}

// geminiBlockReason reports why a 200 response carries no usable content.
func geminiBlockReason(body []byte) (string, bool) {
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason").String(); reason != "" {
		return reason, true
	}
	switch reason := gjson.GetBytes(body, "candidates.0.finishReason").String(); reason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "RECITATION":
		return reason, true
	}
	return "", false
}
