package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// KeyStore resolves bearer keys. *database.DB implements it.
type KeyStore interface {
	GetAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, apiKeyID string) error
}

// RateLimiter counts requests per subject. *redis.Client implements it.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, subject string, limit int) (bool, int, error)
}

type Middleware struct {
	keys         KeyStore
	limiter      RateLimiter
	defaultLimit int
	logger       zerolog.Logger
}

// NewMiddleware creates the HTTP middleware set. A nil limiter disables
// rate limiting.
func NewMiddleware(keys KeyStore, limiter RateLimiter, defaultLimit int, logger zerolog.Logger) *Middleware {
	return &Middleware{
		keys:         keys,
		limiter:      limiter,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// WithAPIKey returns ctx carrying an authenticated key.
func WithAPIKey(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, key)
}

// APIKeyFrom returns the key set by the auth middleware.
func APIKeyFrom(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*models.APIKey)
	return key, ok
}

// UserID returns the authenticated user, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if key, ok := APIKeyFrom(ctx); ok {
		return key.UserID
	}
	return ""
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, required bool) {
	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if token == "" {
		if required {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		next.ServeHTTP(w, r)
		return
	}

	apiKey, err := m.keys.GetAPIKey(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	go func(id string) {
		if err := m.keys.UpdateAPIKeyLastUsed(context.Background(), id); err != nil {
			m.logger.Warn().Err(err).Str("api_key_id", id).Msg("failed to update key last used")
		}
	}(apiKey.ID)

	next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), apiKey)))
}

// Auth requires a valid bearer key.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.authenticate(w, r, next, true)
	})
}

// OptionalAuth resolves a bearer key when one is sent and lets anonymous
// requests through.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.authenticate(w, r, next, false)
	})
}

// RateLimit enforces the per-key request budget. Limiter failures let the
// request through.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := APIKeyFrom(r.Context())
		if !ok || m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		limit := apiKey.RateLimitPerMinute
		if limit <= 0 {
			limit = m.defaultLimit
		}

		exceeded, remaining, err := m.limiter.CheckRateLimit(r.Context(), apiKey.ID, limit)
		if err != nil {
			m.logger.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if exceeded {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORS handles CORS
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type pageRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (p *pageRecorder) WriteHeader(status int) {
	p.status = status
	p.ResponseWriter.WriteHeader(status)
}

func (p *pageRecorder) Write(b []byte) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	p.body.Write(b)
	return p.ResponseWriter.Write(b)
}

// PageCache serves anonymous GETs of whole pages from the store, keyed by
// the escaped request path, which is the form the invalidation graph names
// pages by. Entries are dropped by the graph or on TTL expiry. A page
// invalidated while it was being rendered is served but not cached. A nil
// store disables it.
func PageCache(store cache.Store, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || r.Method != http.MethodGet || r.URL.RawQuery != "" || r.Header.Get("Authorization") != "" {
				next.ServeHTTP(w, r)
				return
			}

			path := r.URL.EscapedPath()
			if body, err := store.GetPage(r.Context(), path); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(body)
				return
			} else if !errors.Is(err, cache.ErrMiss) {
				logger.Warn().Err(err).Str("path", path).Msg("page cache read failed")
			}

			w.Header().Set("X-Cache", "MISS")
			stamp, err := store.PageStamp(r.Context(), path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("page cache stamp failed")
				next.ServeHTTP(w, r)
				return
			}

			rec := &pageRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}
			written, err := store.SetPageStamped(r.Context(), path, rec.body.Bytes(), ttl, stamp)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("page cache write failed")
			} else if !written {
				logger.Debug().Str("path", path).Msg("skipped page invalidated during render")
			}
		})
	}
}
