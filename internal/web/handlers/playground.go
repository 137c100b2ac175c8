package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/playground/catalog"
	"github.com/mrmushfiq/promptlib/internal/playground/providers"
	"github.com/mrmushfiq/promptlib/internal/playground/router"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// Generator runs playground requests. *router.Router implements it.
type Generator interface {
	Generate(ctx context.Context, req providers.GenerationRequest) router.GenerationResult
	Models() []catalog.ModelDescriptor
}

// ProviderStatus reports which providers have credentials.
// *providers.Registry implements it.
type ProviderStatus interface {
	Configured(p providers.Provider) bool
}

// RunLogger persists playground runs. *database.DB implements it.
type RunLogger interface {
	LogPlaygroundRun(ctx context.Context, run *models.PlaygroundRun) error
}

type PlaygroundHandler struct {
	router Generator
	status ProviderStatus
	runs   RunLogger
	logger zerolog.Logger
}

// NewPlaygroundHandler creates the playground handler. A nil runs logger
// disables run logging.
func NewPlaygroundHandler(gen Generator, status ProviderStatus, runs RunLogger, logger zerolog.Logger) *PlaygroundHandler {
	return &PlaygroundHandler{router: gen, status: status, runs: runs, logger: logger}
}

// HandleRun handles POST /v1/playground/run
func (h *PlaygroundHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req providers.GenerationRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	result := h.router.Generate(r.Context(), req)

	w.Header().Set("X-Run-Id", runID)
	if result.Provider != "" {
		w.Header().Set("X-Provider", result.Provider)
	}
	w.Header().Set("X-Latency-Ms", fmt.Sprintf("%d", result.LatencyMs))

	h.logRun(runID, UserID(r.Context()), result)

	writeJSON(w, statusForResult(result), result)
}

func statusForResult(result router.GenerationResult) int {
	if !result.Failed() {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case providers.KindInvalidParameters, providers.KindUnsupportedModel, providers.KindContextTooLong:
		return http.StatusBadRequest
	case providers.KindContentBlocked:
		return http.StatusUnprocessableEntity
	case providers.KindProviderNotConfigured:
		return http.StatusServiceUnavailable
	case providers.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// logRun records the run in the background so the response is not held up
// by the database.
func (h *PlaygroundHandler) logRun(runID, userID string, result router.GenerationResult) {
	if h.runs == nil {
		return
	}

	run := &models.PlaygroundRun{
		ID:        runID,
		Model:     result.Model,
		Provider:  result.Provider,
		LatencyMs: int(result.LatencyMs),
	}
	if userID != "" {
		run.UserID = &userID
	}
	if result.Usage != nil {
		run.PromptTokens = result.Usage.PromptTokens
		run.CompletionTokens = result.Usage.CompletionTokens
		run.TotalTokens = result.Usage.TotalTokens
	}
	if result.Failed() {
		kind, msg := string(result.ErrorKind), result.Error
		run.ErrorKind = &kind
		run.ErrorMessage = &msg
	}

	go func() {
		if err := h.runs.LogPlaygroundRun(context.Background(), run); err != nil {
			h.logger.Warn().Err(err).Str("model", run.Model).Msg("failed to log playground run")
		}
	}()
}

type modelEntry struct {
	catalog.ModelDescriptor
	Configured bool `json:"configured"`
}

// HandleModels handles GET /v1/models
func (h *PlaygroundHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	list := h.router.Models()
	out := make([]modelEntry, 0, len(list))
	for _, m := range list {
		entry := modelEntry{ModelDescriptor: m}
		if p, ok := providers.ParseProvider(m.Provider); ok && h.status != nil {
			entry.Configured = h.status.Configured(p)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}
