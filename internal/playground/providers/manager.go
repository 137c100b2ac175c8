package providers

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Endpoints overrides provider base URLs. Empty fields use the public APIs.
type Endpoints struct {
	OpenAI     string
	OpenRouter string
	Anthropic  string
	Gemini     string
}

// Factory builds a client for a provider once its API key is known.
type Factory func(p Provider, apiKey string) (Client, error)

// Factory returns the default factory that builds real HTTP adapters.
func (e Endpoints) Factory() Factory {
	return func(p Provider, apiKey string) (Client, error) {
		switch p {
		case Google:
			return NewGeminiProvider(apiKey, e.Gemini), nil
		case Anthropic:
			return NewAnthropicProvider(apiKey, e.Anthropic), nil
		case OpenAI:
			return NewOpenAIProvider(apiKey, e.OpenAI), nil
		case OpenRouter:
			return NewOpenRouterProvider(apiKey, e.OpenRouter), nil
		}
		return nil, fmt.Errorf("no adapter for provider %d", int(p))
	}
}

// Registry lazily builds and caches one client per provider. It is created
// once at startup and shared by reference; clients live until the process
// exits. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	clients   map[Provider]Client
	factory   Factory
	lookupEnv func(string) (string, bool)
	logger    zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory replaces the adapter factory, mainly for tests.
func WithFactory(f Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithEnv replaces the environment lookup used to find API keys.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Registry) { r.lookupEnv = lookup }
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry with no clients built yet.
func NewRegistry(endpoints Endpoints, opts ...Option) *Registry {
	r := &Registry{
		clients:   make(map[Provider]Client),
		factory:   endpoints.Factory(),
		lookupEnv: os.LookupEnv,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client returns the cached client for p, building it on first use. A
// missing API key yields a KindProviderNotConfigured *Error and nothing is
// cached, so other providers are unaffected and a later call may succeed.
func (r *Registry) Client(p Provider) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[p]; ok {
		return client, nil
	}

	apiKey, ok := r.lookupEnv(p.EnvVar())
	if !ok || apiKey == "" {
		return nil, newError(p, KindProviderNotConfigured, 0, p.EnvVar()+" is not set", nil)
	}

	client, err := r.factory(p, apiKey)
	if err != nil {
		return nil, newError(p, KindProviderNotConfigured, 0, err.Error(), err)
	}

	r.clients[p] = client
	r.logger.Info().Str("provider", p.String()).Msg("initialized provider client")
	return client, nil
}

// Configured reports whether p has an API key available, without building
// a client.
func (r *Registry) Configured(p Provider) bool {
	r.mu.Lock()
	_, built := r.clients[p]
	r.mu.Unlock()
	if built {
		return true
	}
	key, ok := r.lookupEnv(p.EnvVar())
	return ok && key != ""
}
