package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
)

// Routes holds everything the HTTP surface is built from.
type Routes struct {
	Middleware *Middleware
	Prompts    *PromptHandler
	Playground *PlaygroundHandler

	// PageStore caches anonymous page responses. Nil disables page caching.
	PageStore cache.Store
	PageTTL   time.Duration

	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Handler builds the chi router.
func (rt Routes) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if rt.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(rt.RequestTimeout))
	}
	r.Use(requestLogger(rt.Logger))
	r.Use(rt.Middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Public pages
	r.Group(func(r chi.Router) {
		r.Use(PageCache(rt.PageStore, rt.PageTTL, rt.Logger))
		r.Use(rt.Middleware.OptionalAuth)

		r.Get(cache.PathRoot, rt.Prompts.HandleHome)
		r.Get(cache.PathShowcase, rt.Prompts.HandleShowcase)
		r.Get("/categories/{id}", rt.Prompts.HandleCategoryPage)
		r.Get("/tags/{tag}", rt.Prompts.HandleTagPage)
	})
	r.With(rt.Middleware.Auth).Get(cache.PathFavorites, rt.Prompts.HandleMyFavorites)

	r.Route("/v1", func(r chi.Router) {
		// Reads
		r.Group(func(r chi.Router) {
			r.Use(rt.Middleware.OptionalAuth)
			r.Use(rt.Middleware.RateLimit)

			r.Get("/prompts", rt.Prompts.HandleShowcase)
			r.Get("/prompts/featured", rt.Prompts.HandleFeatured)
			r.Get("/prompts/trending", rt.Prompts.HandleTrending)
			r.Get("/prompts/{id}", rt.Prompts.HandleGet)
			r.Get("/categories", rt.Prompts.HandleCategories)
			r.Get("/models", rt.Playground.HandleModels)
		})

		// Writes and per-user data
		r.Group(func(r chi.Router) {
			r.Use(rt.Middleware.Auth)
			r.Use(rt.Middleware.RateLimit)

			r.Post("/prompts", rt.Prompts.HandleCreate)
			r.Patch("/prompts/{id}", rt.Prompts.HandleUpdate)
			r.Delete("/prompts/{id}", rt.Prompts.HandleDelete)
			r.Post("/prompts/{id}/fork", rt.Prompts.HandleFork)
			r.Post("/prompts/{id}/vote", rt.Prompts.HandleVote)
			r.Post("/prompts/{id}/favorite", rt.Prompts.HandleFavorite)
			r.Get("/me/favorites", rt.Prompts.HandleMyFavorites)
			r.Get("/me/votes", rt.Prompts.HandleMyVotes)
			r.Post("/playground/run", rt.Playground.HandleRun)
		})
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
