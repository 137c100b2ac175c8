package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the prompt library service.
// Provider credentials are deliberately absent: the provider registry reads
// them from the environment the first time each provider is used.
type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Provider endpoints (empty means the provider's public API)
	OpenAIBaseURL     string
	OpenRouterBaseURL string
	AnthropicBaseURL  string
	GeminiBaseURL     string
	ProviderTimeout   time.Duration

	// Rate Limiting
	DefaultRateLimit int

	// Caching
	CacheTTLSeconds int
	CacheEnabled    bool
	CacheMemorySize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", ""),
		AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		ProviderTimeout:   time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		DefaultRateLimit:  getEnvInt("DEFAULT_RATE_LIMIT", 30),
		CacheTTLSeconds:   getEnvInt("CACHE_TTL_SECONDS", 3600),
		CacheEnabled:      getEnvBool("CACHE_ENABLED", true),
		CacheMemorySize:   getEnvInt("CACHE_MEMORY_SIZE", 2048),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	if cfg.CacheMemorySize <= 0 {
		return nil, fmt.Errorf("CACHE_MEMORY_SIZE must be positive")
	}

	return cfg, nil
}

// CacheTTL returns the cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
