// Package router dispatches playground generation requests to the provider
// that serves the requested model and folds every outcome into a
// GenerationResult.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/playground/catalog"
	"github.com/mrmushfiq/promptlib/internal/playground/providers"
)

// MaxPromptLength is the longest prompt accepted, in characters.
const MaxPromptLength = 50000

// DefaultTimeout bounds a provider call when the caller set no deadline.
const DefaultTimeout = 60 * time.Second

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrUnsupportedModel  = errors.New("unsupported model")
)

// ClientSource hands out provider clients. *providers.Registry implements it.
type ClientSource interface {
	Client(p providers.Provider) (providers.Client, error)
}

// Router maps model ids to providers. The id map is built once in New and
// only read afterwards.
type Router struct {
	clients ClientSource
	list    []catalog.ModelDescriptor
	models  map[string]catalog.ModelDescriptor
	routes  map[string]providers.Provider
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the per-call timeout applied when the caller's context
// has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithModels replaces the catalog the router serves.
func WithModels(models []catalog.ModelDescriptor) Option {
	return func(r *Router) { r.index(models) }
}

// New creates a router over the full model catalog.
func New(clients ClientSource, opts ...Option) *Router {
	r := &Router{
		clients: clients,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	r.index(catalog.All())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) index(models []catalog.ModelDescriptor) {
	r.list = nil
	r.models = make(map[string]catalog.ModelDescriptor, len(models))
	r.routes = make(map[string]providers.Provider, len(models))
	for _, m := range models {
		p, ok := providers.ParseProvider(m.Provider)
		if !ok {
			continue
		}
		r.list = append(r.list, m)
		r.models[m.ID] = m
		r.routes[m.ID] = p
	}
}

// Models lists every model the router can dispatch to.
func (r *Router) Models() []catalog.ModelDescriptor {
	out := make([]catalog.ModelDescriptor, len(r.list))
	copy(out, r.list)
	return out
}

// ResolveProvider returns the provider serving modelID.
func (r *Router) ResolveProvider(modelID string) (providers.Provider, bool) {
	p, ok := r.routes[modelID]
	return p, ok
}

// IsModelSupported reports whether modelID is in the catalog.
func (r *Router) IsModelSupported(modelID string) bool {
	_, ok := r.routes[modelID]
	return ok
}

// ModelInfo returns the catalog entry for modelID.
func (r *Router) ModelInfo(modelID string) (catalog.ModelDescriptor, bool) {
	m, ok := r.models[modelID]
	return m, ok
}

// Validate checks req and reports the first violated constraint. The error
// wraps ErrUnsupportedModel for an unknown model and ErrInvalidParameters
// for everything else.
func (r *Router) Validate(req providers.GenerationRequest) error {
	if req.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidParameters)
	}
	model, ok := r.models[req.Model]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, req.Model)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidParameters)
	}
	if n := utf8.RuneCountInString(req.Prompt); n > MaxPromptLength {
		return fmt.Errorf("%w: prompt is %d characters, maximum is %d", ErrInvalidParameters, n, MaxPromptLength)
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 1 {
			return fmt.Errorf("%w: maxTokens must be at least 1", ErrInvalidParameters)
		}
		if model.MaxOutputTokens > 0 && *req.MaxTokens > model.MaxOutputTokens {
			return fmt.Errorf("%w: maxTokens %d exceeds %d for %s", ErrInvalidParameters, *req.MaxTokens, model.MaxOutputTokens, model.ID)
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidParameters)
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return fmt.Errorf("%w: topP must be between 0 and 1", ErrInvalidParameters)
	}
	if req.FrequencyPenalty != nil && (*req.FrequencyPenalty < -2 || *req.FrequencyPenalty > 2) {
		return fmt.Errorf("%w: frequencyPenalty must be between -2 and 2", ErrInvalidParameters)
	}
	if req.PresencePenalty != nil && (*req.PresencePenalty < -2 || *req.PresencePenalty > 2) {
		return fmt.Errorf("%w: presencePenalty must be between -2 and 2", ErrInvalidParameters)
	}
	return nil
}

// Generate validates req, dispatches it and returns the normalized result.
// It never returns an error value and recovers from adapter panics.
func (r *Router) Generate(ctx context.Context, req providers.GenerationRequest) (result GenerationResult) {
	start := time.Now()
	provider, _ := r.ResolveProvider(req.Model)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("model", req.Model).Msg("provider adapter panicked")
			result = failure(req.Model, provider, providers.KindProviderUnavailable,
				fmt.Sprintf("%s is temporarily unavailable. Please try again later.", provider.DisplayName()))
		}
		result.LatencyMs = time.Since(start).Milliseconds()
		r.logResult(req, result)
	}()

	if err := r.Validate(req); err != nil {
		if errors.Is(err, ErrUnsupportedModel) {
			return failure(req.Model, provider, providers.KindUnsupportedModel,
				fmt.Sprintf("Model %q is not supported.", req.Model))
		}
		return failure(req.Model, provider, providers.KindInvalidParameters, err.Error())
	}

	client, err := r.clients.Client(provider)
	if err != nil {
		return failure(req.Model, provider, providers.KindProviderNotConfigured, err.Error())
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	completion, err := client.Generate(ctx, req)
	if err != nil {
		return failure(req.Model, provider, providers.KindOf(err), err.Error())
	}
	return success(req.Model, provider, completion)
}

func (r *Router) logResult(req providers.GenerationRequest, result GenerationResult) {
	if result.Error != "" {
		r.logger.Warn().
			Str("model", req.Model).
			Str("provider", result.Provider).
			Str("error_kind", string(result.ErrorKind)).
			Int64("latency_ms", result.LatencyMs).
			Msg(result.Error)
		return
	}
	r.logger.Info().
		Str("model", req.Model).
		Str("provider", result.Provider).
		Int("total_tokens", result.Usage.TotalTokens).
		Int64("latency_ms", result.LatencyMs).
		Msg("generation completed")
}
