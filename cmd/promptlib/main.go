package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
	"github.com/mrmushfiq/promptlib/internal/library/invalidation"
	"github.com/mrmushfiq/promptlib/internal/library/prompts"
	"github.com/mrmushfiq/promptlib/internal/playground/providers"
	"github.com/mrmushfiq/promptlib/internal/playground/router"
	"github.com/mrmushfiq/promptlib/internal/shared/config"
	"github.com/mrmushfiq/promptlib/internal/shared/database"
	"github.com/mrmushfiq/promptlib/internal/shared/logger"
	"github.com/mrmushfiq/promptlib/internal/shared/redis"
	"github.com/mrmushfiq/promptlib/internal/web/handlers"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting prompt library")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Cache store and rate limiter. Redis is optional: without it the
	// cache lives in process and rate limiting is off.
	var (
		store   cache.Store
		limiter handlers.RateLimiter
	)
	if cfg.CacheEnabled {
		redisClient, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
			mem, err := cache.NewMemoryStore(cfg.CacheMemorySize)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create memory cache")
			}
			store = mem
		} else {
			defer redisClient.Close()
			store = cache.NewRedisStore(redisClient)
			limiter = redisClient
			log.Info().Msg("connected to Redis")
		}
	} else {
		log.Info().Msg("caching disabled")
	}

	// Playground
	registry := providers.NewRegistry(providers.Endpoints{
		OpenAI:     cfg.OpenAIBaseURL,
		OpenRouter: cfg.OpenRouterBaseURL,
		Anthropic:  cfg.AnthropicBaseURL,
		Gemini:     cfg.GeminiBaseURL,
	}, providers.WithLogger(log))
	for _, p := range providers.All() {
		log.Info().Str("provider", p.String()).Bool("configured", registry.Configured(p)).Msg("provider")
	}
	modelRouter := router.New(registry, router.WithTimeout(cfg.ProviderTimeout), router.WithLogger(log))

	// Prompt library
	loader := cache.NewLoader(store, cfg.CacheTTL(), log)
	graph := invalidation.New(store, log)
	service := prompts.NewService(db, loader, graph, log)

	routes := handlers.Routes{
		Middleware:     handlers.NewMiddleware(db, limiter, cfg.DefaultRateLimit, log),
		Prompts:        handlers.NewPromptHandler(service, log),
		Playground:     handlers.NewPlaygroundHandler(modelRouter, registry, db, log),
		PageStore:      store,
		PageTTL:        cfg.CacheTTL(),
		RequestTimeout: cfg.ProviderTimeout + 5*time.Second,
		Logger:         log,
	}

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Msgf("listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
