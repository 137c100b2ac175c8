package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
	"github.com/mrmushfiq/promptlib/internal/library/prompts"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// homeListSize is the number of prompts in each home page section.
const homeListSize = 12

// PromptService is the prompt library surface the handlers use.
// *prompts.Service implements it.
type PromptService interface {
	List(ctx context.Context, f prompts.Filter) (*prompts.Page, error)
	Get(ctx context.Context, id int64, viewerID string) (*models.Prompt, error)
	Featured(ctx context.Context, limit int) ([]models.Prompt, error)
	Trending(ctx context.Context, limit int) ([]models.Prompt, error)
	CategoryCounts(ctx context.Context) ([]models.Category, error)
	UserFavorites(ctx context.Context, userID string, limit, offset int) ([]models.Prompt, error)
	UserVotes(ctx context.Context, userID string) (map[int64]int, error)

	Create(ctx context.Context, userID string, in prompts.Input) (*models.Prompt, error)
	Update(ctx context.Context, userID string, id int64, in prompts.Input) (*models.Prompt, error)
	Delete(ctx context.Context, userID string, id int64) error
	Fork(ctx context.Context, userID string, id int64) (*models.Prompt, error)
	Vote(ctx context.Context, userID string, id int64, value int) (int, error)
	ToggleFavorite(ctx context.Context, userID string, id int64) (bool, error)
}

type PromptHandler struct {
	prompts PromptService
	logger  zerolog.Logger
}

func NewPromptHandler(svc PromptService, logger zerolog.Logger) *PromptHandler {
	return &PromptHandler{prompts: svc, logger: logger}
}

type homePage struct {
	Featured   []models.Prompt   `json:"featured"`
	Trending   []models.Prompt   `json:"trending"`
	Categories []models.Category `json:"categories"`
}

// HandleHome handles GET /
func (h *PromptHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	featured, err := h.prompts.Featured(ctx, homeListSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	trending, err := h.prompts.Trending(ctx, homeListSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	categories, err := h.prompts.CategoryCounts(ctx)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, homePage{Featured: featured, Trending: trending, Categories: categories})
}

// HandleShowcase handles GET /prompts and GET /v1/prompts
func (h *PromptHandler) HandleShowcase(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.writePage(w, r, f)
}

// HandleCategoryPage handles GET /categories/{id}
func (h *PromptHandler) HandleCategoryPage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if redirectCanonical(w, r, cache.CategoryPath(id)) {
		return
	}

	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	f.CategoryID = &id
	h.writePage(w, r, f)
}

// HandleTagPage handles GET /tags/{tag}
func (h *PromptHandler) HandleTagPage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "tag")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	tags := prompts.NormalizeTags([]string{raw})
	if len(tags) != 1 {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	if redirectCanonical(w, r, cache.TagPath(tags[0])) {
		return
	}

	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	f.Tag = tags[0]
	h.writePage(w, r, f)
}

func (h *PromptHandler) writePage(w http.ResponseWriter, r *http.Request, f prompts.Filter) {
	page, err := h.prompts.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// redirectCanonical sends the client to the path the page cache and its
// invalidation use, so each listing is cached under exactly one key.
func redirectCanonical(w http.ResponseWriter, r *http.Request, canonical string) bool {
	if r.URL.EscapedPath() == canonical {
		return false
	}
	target := canonical
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
	return true
}

func filterFromQuery(q url.Values) (prompts.Filter, error) {
	f := prompts.Filter{
		Tag:     q.Get("tag"),
		OwnerID: q.Get("owner"),
		Search:  q.Get("q"),
		Sort:    q.Get("sort"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("%w: invalid %s", prompts.ErrInvalidInput, name)
			}
			*dst = n
		}
	}
	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: invalid category", prompts.ErrInvalidInput)
		}
		f.CategoryID = &id
	}
	return f, nil
}

// HandleGet handles GET /v1/prompts/{id}
func (h *PromptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.prompts.Get(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleFeatured handles GET /v1/prompts/featured
func (h *PromptHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	items, err := h.prompts.Featured(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": items})
}

// HandleTrending handles GET /v1/prompts/trending
func (h *PromptHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	items, err := h.prompts.Trending(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": items})
}

// HandleCategories handles GET /v1/categories
func (h *PromptHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.prompts.CategoryCounts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// HandleCreate handles POST /v1/prompts
func (h *PromptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in prompts.Input
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.prompts.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// promptPatch carries the fields a PATCH may change. Absent fields keep
// their stored values.
type promptPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Content     *string   `json:"content"`
	CategoryID  *int64    `json:"category_id"`
	ClearCat    bool      `json:"clear_category"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
}

func (p promptPatch) apply(existing *models.Prompt) prompts.Input {
	in := prompts.Input{
		Title:       existing.Title,
		Description: existing.Description,
		Content:     existing.Content,
		CategoryID:  existing.CategoryID,
		Tags:        existing.Tags,
		IsPublic:    p.IsPublic,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Content != nil {
		in.Content = *p.Content
	}
	if p.CategoryID != nil {
		in.CategoryID = p.CategoryID
	}
	if p.ClearCat {
		in.CategoryID = nil
	}
	if p.Tags != nil {
		in.Tags = *p.Tags
	}
	return in
}

// HandleUpdate handles PATCH /v1/prompts/{id}
func (h *PromptHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	var patch promptPatch
	if err := readJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := UserID(ctx)
	existing, err := h.prompts.Get(ctx, id, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.prompts.Update(ctx, userID, id, patch.apply(existing))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /v1/prompts/{id}
func (h *PromptHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.prompts.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFork handles POST /v1/prompts/{id}/fork
func (h *PromptHandler) HandleFork(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	p, err := h.prompts.Fork(r.Context(), UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type voteRequest struct {
	Value int `json:"value"`
}

// HandleVote handles POST /v1/prompts/{id}/vote
func (h *PromptHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	var req voteRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.prompts.Vote(r.Context(), UserID(r.Context()), id, req.Value)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"vote_count": count, "value": req.Value})
}

// HandleFavorite handles POST /v1/prompts/{id}/favorite
func (h *PromptHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	favorited, err := h.prompts.ToggleFavorite(r.Context(), UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// HandleMyFavorites handles GET /favorites and GET /v1/me/favorites
func (h *PromptHandler) HandleMyFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := h.prompts.UserFavorites(r.Context(), UserID(r.Context()), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": items})
}

// HandleMyVotes handles GET /v1/me/votes
func (h *PromptHandler) HandleMyVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := h.prompts.UserVotes(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}
