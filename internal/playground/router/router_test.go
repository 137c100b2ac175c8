package router

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/promptlib/internal/playground/catalog"
	"github.com/mrmushfiq/promptlib/internal/playground/providers"
)

func ptr[T any](v T) *T { return &v }

type fakeClient struct {
	provider providers.Provider
	calls    atomic.Int32
	generate func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error)
}

func (f *fakeClient) Generate(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
	f.calls.Add(1)
	return f.generate(ctx, req)
}

func (f *fakeClient) Provider() providers.Provider { return f.provider }

// newTestRouter wires fake clients through a real Registry so the
// not-configured path is exercised end to end.
func newTestRouter(t *testing.T, env map[string]string, clients map[providers.Provider]*fakeClient, opts ...Option) *Router {
	t.Helper()
	registry := providers.NewRegistry(providers.Endpoints{},
		providers.WithEnv(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
		providers.WithFactory(func(p providers.Provider, apiKey string) (providers.Client, error) {
			c, ok := clients[p]
			if !ok {
				return nil, errors.New("no fake")
			}
			return c, nil
		}),
	)
	return New(registry, opts...)
}

func hiClient() *fakeClient {
	return &fakeClient{
		provider: providers.Anthropic,
		generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
			return &providers.Completion{
				Content: "Hi!",
				Model:   req.Model,
				Usage:   providers.Usage{PromptTokens: 5, CompletionTokens: 2},
			}, nil
		},
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	anthropic := hiClient()
	r := newTestRouter(t,
		map[string]string{"ANTHROPIC_API_KEY": "k"},
		map[providers.Provider]*fakeClient{providers.Anthropic: anthropic},
	)

	result := r.Generate(context.Background(), providers.GenerationRequest{
		Model:       "claude-3-5-sonnet-20241022",
		Prompt:      "Say hi",
		MaxTokens:   ptr(10),
		Temperature: ptr(0.5),
	})

	assert.Equal(t, "Hi!", result.Content)
	assert.Equal(t, "claude-3-5-sonnet-20241022", result.Model)
	assert.Equal(t, "anthropic", result.Provider)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 7, result.Usage.TotalTokens)
	assert.Empty(t, result.Error)
	assert.False(t, result.Failed())
}

func TestGenerate_UnsupportedModelMakesNoCall(t *testing.T) {
	var built atomic.Int32
	registry := providers.NewRegistry(providers.Endpoints{},
		providers.WithFactory(func(p providers.Provider, apiKey string) (providers.Client, error) {
			built.Add(1)
			return nil, errors.New("unexpected")
		}),
	)
	r := New(registry)

	for _, model := range []string{"gpt-9", "claude", "gemini-2.0-flash ", "GPT-4O"} {
		result := r.Generate(context.Background(), providers.GenerationRequest{Model: model, Prompt: "hi"})
		assert.Empty(t, result.Content, model)
		assert.NotEmpty(t, result.Error, model)
		assert.Equal(t, providers.KindUnsupportedModel, result.ErrorKind, model)
		assert.Nil(t, result.Usage, model)
	}
	assert.Equal(t, int32(0), built.Load())
}

func TestGenerate_InvalidParametersNeverDispatch(t *testing.T) {
	anthropic := hiClient()
	r := newTestRouter(t,
		map[string]string{"ANTHROPIC_API_KEY": "k"},
		map[providers.Provider]*fakeClient{providers.Anthropic: anthropic},
	)

	base := providers.GenerationRequest{Model: "claude-3-5-sonnet-20241022", Prompt: "ok"}
	tests := []struct {
		name string
		mod  func(*providers.GenerationRequest)
		want string
	}{
		{"long prompt", func(r *providers.GenerationRequest) { r.Prompt = strings.Repeat("a", MaxPromptLength+1) }, "prompt is 50001 characters"},
		{"blank prompt", func(r *providers.GenerationRequest) { r.Prompt = "  \n\t" }, "prompt is required"},
		{"temperature high", func(r *providers.GenerationRequest) { r.Temperature = ptr(2.1) }, "temperature"},
		{"temperature negative", func(r *providers.GenerationRequest) { r.Temperature = ptr(-0.1) }, "temperature"},
		{"topP high", func(r *providers.GenerationRequest) { r.TopP = ptr(1.01) }, "topP"},
		{"topP negative", func(r *providers.GenerationRequest) { r.TopP = ptr(-1.0) }, "topP"},
		{"maxTokens over model limit", func(r *providers.GenerationRequest) { r.MaxTokens = ptr(8193) }, "exceeds 8192"},
		{"maxTokens zero", func(r *providers.GenerationRequest) { r.MaxTokens = ptr(0) }, "at least 1"},
		{"frequency penalty", func(r *providers.GenerationRequest) { r.FrequencyPenalty = ptr(3.0) }, "frequencyPenalty"},
		{"presence penalty", func(r *providers.GenerationRequest) { r.PresencePenalty = ptr(-2.5) }, "presencePenalty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mod(&req)
			result := r.Generate(context.Background(), req)
			assert.Equal(t, providers.KindInvalidParameters, result.ErrorKind)
			assert.Contains(t, result.Error, tt.want)
			assert.Empty(t, result.Content)
		})
	}
	assert.Equal(t, int32(0), anthropic.calls.Load())
}

func TestValidate_Boundaries(t *testing.T) {
	r := New(providers.NewRegistry(providers.Endpoints{}))

	ok := []providers.GenerationRequest{
		{Model: "gpt-4o", Prompt: strings.Repeat("é", MaxPromptLength)},
		{Model: "gpt-4o", Prompt: "x", Temperature: ptr(0.0), TopP: ptr(0.0)},
		{Model: "gpt-4o", Prompt: "x", Temperature: ptr(2.0), TopP: ptr(1.0)},
		{Model: "gpt-4o", Prompt: "x", MaxTokens: ptr(16384)},
	}
	for _, req := range ok {
		assert.NoError(t, r.Validate(req))
	}

	err := r.Validate(providers.GenerationRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrInvalidParameters)
	assert.Contains(t, err.Error(), "model is required")

	err = r.Validate(providers.GenerationRequest{Model: "nope", Prompt: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestValidate_ReportsFirstFailure(t *testing.T) {
	r := New(providers.NewRegistry(providers.Endpoints{}))

	err := r.Validate(providers.GenerationRequest{
		Model:       "gpt-4o",
		Prompt:      "",
		Temperature: ptr(5.0),
		TopP:        ptr(5.0),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is required")
	assert.NotContains(t, err.Error(), "temperature")
}

func TestGenerate_MissingCredentialsIsolated(t *testing.T) {
	openai := &fakeClient{
		provider: providers.OpenAI,
		generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
			return &providers.Completion{Content: "fine", Usage: providers.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}, nil
		},
	}
	r := newTestRouter(t,
		map[string]string{"OPENAI_API_KEY": "k"},
		map[providers.Provider]*fakeClient{providers.OpenAI: openai},
	)

	blocked := r.Generate(context.Background(), providers.GenerationRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	assert.Equal(t, providers.KindProviderNotConfigured, blocked.ErrorKind)
	assert.Contains(t, blocked.Error, "GEMINI_API_KEY")
	assert.Empty(t, blocked.Content)

	fine := r.Generate(context.Background(), providers.GenerationRequest{Model: "gpt-4o", Prompt: "x"})
	assert.Empty(t, fine.Error)
	assert.Equal(t, "fine", fine.Content)
	assert.Equal(t, 2, fine.Usage.TotalTokens)
}

func TestGenerate_ProviderErrorsAreNormalized(t *testing.T) {
	kinds := []providers.ErrorKind{
		providers.KindInvalidCredentials,
		providers.KindRateLimited,
		providers.KindQuotaExceeded,
		providers.KindContextTooLong,
		providers.KindContentBlocked,
		providers.KindModelNotFound,
		providers.KindProviderUnavailable,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			client := &fakeClient{
				provider: providers.OpenRouter,
				generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
					return &providers.Completion{Content: "partial"}, &providers.Error{Kind: kind, Provider: providers.OpenRouter}
				},
			}
			r := newTestRouter(t,
				map[string]string{"OPENROUTER_API_KEY": "k"},
				map[providers.Provider]*fakeClient{providers.OpenRouter: client},
			)

			result := r.Generate(context.Background(), providers.GenerationRequest{Model: "deepseek/deepseek-chat", Prompt: "x"})
			assert.Equal(t, kind, result.ErrorKind)
			assert.NotEmpty(t, result.Error)
			assert.Empty(t, result.Content, "partial output is discarded")
			assert.Nil(t, result.Usage)
		})
	}
}

func TestGenerate_UnclassifiedErrorIsUnavailable(t *testing.T) {
	client := &fakeClient{
		provider: providers.OpenAI,
		generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
			return nil, errors.New("socket closed")
		},
	}
	r := newTestRouter(t, map[string]string{"OPENAI_API_KEY": "k"}, map[providers.Provider]*fakeClient{providers.OpenAI: client})

	result := r.Generate(context.Background(), providers.GenerationRequest{Model: "gpt-4o", Prompt: "x"})
	assert.Equal(t, providers.KindProviderUnavailable, result.ErrorKind)
}

func TestGenerate_RecoversFromPanic(t *testing.T) {
	client := &fakeClient{
		provider: providers.Google,
		generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
			panic("nil map")
		},
	}
	r := newTestRouter(t, map[string]string{"GEMINI_API_KEY": "k"}, map[providers.Provider]*fakeClient{providers.Google: client})

	var result GenerationResult
	assert.NotPanics(t, func() {
		result = r.Generate(context.Background(), providers.GenerationRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	})
	assert.Equal(t, providers.KindProviderUnavailable, result.ErrorKind)
	assert.Empty(t, result.Content)
}

func TestGenerate_AppliesTimeout(t *testing.T) {
	client := &fakeClient{
		provider: providers.OpenAI,
		generate: func(ctx context.Context, req providers.GenerationRequest) (*providers.Completion, error) {
			_, hasDeadline := ctx.Deadline()
			if !hasDeadline {
				return nil, errors.New("no deadline")
			}
			<-ctx.Done()
			return nil, &providers.Error{Kind: providers.KindProviderUnavailable, Provider: providers.OpenAI, Err: ctx.Err()}
		},
	}
	r := newTestRouter(t,
		map[string]string{"OPENAI_API_KEY": "k"},
		map[providers.Provider]*fakeClient{providers.OpenAI: client},
		WithTimeout(20*time.Millisecond),
	)

	start := time.Now()
	result := r.Generate(context.Background(), providers.GenerationRequest{Model: "gpt-4o", Prompt: "x"})
	assert.Equal(t, providers.KindProviderUnavailable, result.ErrorKind)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolveProvider(t *testing.T) {
	r := New(providers.NewRegistry(providers.Endpoints{}))

	tests := map[string]providers.Provider{
		"gemini-2.5-pro":                    providers.Google,
		"claude-sonnet-4-5-20250929":        providers.Anthropic,
		"gpt-4o-mini":                       providers.OpenAI,
		"meta-llama/llama-3.3-70b-instruct": providers.OpenRouter,
	}
	for id, want := range tests {
		got, ok := r.ResolveProvider(id)
		assert.True(t, ok, id)
		assert.Equal(t, want, got, id)
		assert.True(t, r.IsModelSupported(id))
	}

	_, ok := r.ResolveProvider("davinci")
	assert.False(t, ok)
	assert.False(t, r.IsModelSupported("davinci"))

	info, ok := r.ModelInfo("claude-3-5-sonnet-20241022")
	require.True(t, ok)
	assert.Equal(t, 8192, info.MaxOutputTokens)
}

func TestWithModels_RestrictsCatalog(t *testing.T) {
	r := New(providers.NewRegistry(providers.Endpoints{}), WithModels([]catalog.ModelDescriptor{
		{ID: "local-test", Provider: catalog.ProviderOpenAI, MaxOutputTokens: 100},
		{ID: "bogus", Provider: "not-a-provider", MaxOutputTokens: 100},
	}))

	assert.True(t, r.IsModelSupported("local-test"))
	assert.False(t, r.IsModelSupported("bogus"))
	assert.False(t, r.IsModelSupported("gpt-4o"))
	require.Len(t, r.Models(), 1)

	err := r.Validate(providers.GenerationRequest{Model: "local-test", Prompt: "x", MaxTokens: ptr(101)})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
