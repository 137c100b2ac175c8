package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the provider-agnostic classification of a failed generation.
type ErrorKind string

const (
	KindUnsupportedModel      ErrorKind = "unsupported_model"
	KindProviderNotConfigured ErrorKind = "provider_not_configured"
	KindInvalidParameters     ErrorKind = "invalid_parameters"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindRateLimited           ErrorKind = "rate_limited"
	KindQuotaExceeded         ErrorKind = "quota_exceeded"
	KindContextTooLong        ErrorKind = "context_too_long"
	KindContentBlocked        ErrorKind = "content_blocked"
	KindModelNotFound         ErrorKind = "model_not_found"
	KindProviderUnavailable   ErrorKind = "provider_unavailable"
)

// Error is returned by provider clients and the registry. Error() is a
// user-facing sentence; Detail keeps the raw provider message for logs.
type Error struct {
	Kind       ErrorKind
	Provider   Provider
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	name := e.Provider.DisplayName()
	switch e.Kind {
	case KindProviderNotConfigured:
		return fmt.Sprintf("%s is not configured. Set %s to enable it.", name, e.Provider.EnvVar())
	case KindInvalidCredentials:
		return fmt.Sprintf("Invalid API key for %s. Please check your configuration.", name)
	case KindRateLimited:
		return fmt.Sprintf("Rate limit exceeded for %s. Please wait a moment and try again.", name)
	case KindQuotaExceeded:
		return fmt.Sprintf("%s quota exceeded. Check your plan and billing details, or switch to a different provider.", name)
	case KindContextTooLong:
		return "Prompt is too long for this model's context window. Try shortening it."
	case KindContentBlocked:
		return fmt.Sprintf("The request was blocked by %s's content policy.", name)
	case KindModelNotFound:
		return fmt.Sprintf("Model not found or not accessible with your %s account.", name)
	default:
		return fmt.Sprintf("%s is temporarily unavailable. Please try again later.", name)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err. Errors that did not come from a
// provider adapter count as KindProviderUnavailable.
func KindOf(err error) ErrorKind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindProviderUnavailable
}

func newError(p Provider, kind ErrorKind, status int, detail string, err error) *Error {
	return &Error{Kind: kind, Provider: p, StatusCode: status, Detail: detail, Err: err}
}

// transportError wraps a failure that happened before any HTTP status was
// received: DNS, connection reset, timeout or caller cancellation.
func transportError(p Provider, err error) *Error {
	detail := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "request timed out: " + detail
	}
	return newError(p, KindProviderUnavailable, 0, detail, err)
}
