// Package prompts implements the prompt library: cached, tagged reads and
// mutations that invalidate the affected cache partitions before returning.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
	"github.com/mrmushfiq/promptlib/internal/library/invalidation"
	"github.com/mrmushfiq/promptlib/internal/shared/database"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

var (
	ErrNotFound     = errors.New("prompt not found")
	ErrForbidden    = errors.New("not the owner of this prompt")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Repository is the persistence the service needs. *database.DB
// implements it.
type Repository interface {
	ListPrompts(ctx context.Context, q database.PromptQuery) ([]models.Prompt, error)
	CountPrompts(ctx context.Context, q database.PromptQuery) (int, error)
	GetPrompt(ctx context.Context, id int64) (*models.Prompt, error)
	InsertPrompt(ctx context.Context, p *models.Prompt) error
	UpdatePrompt(ctx context.Context, p *models.Prompt) error
	DeletePrompt(ctx context.Context, id int64, ownerID string) error
	IncrementForkCount(ctx context.Context, id int64) error
	CategoryCounts(ctx context.Context) ([]models.Category, error)

	SetVote(ctx context.Context, promptID int64, userID string, value int) (int, error)
	ToggleFavorite(ctx context.Context, promptID int64, userID string) (bool, error)
	ListFavoritePrompts(ctx context.Context, userID string, limit, offset int) ([]models.Prompt, error)
	ListUserVotes(ctx context.Context, userID string) (map[int64]int, error)
}

// Service is the prompt library's domain layer.
type Service struct {
	repo   Repository
	loader *cache.Loader
	graph  *invalidation.Graph
	logger zerolog.Logger
}

func NewService(repo Repository, loader *cache.Loader, graph *invalidation.Graph, logger zerolog.Logger) *Service {
	return &Service{repo: repo, loader: loader, graph: graph, logger: logger}
}

// Filter selects a page of public prompts.
type Filter struct {
	CategoryID *int64
	Tag        string
	OwnerID    string
	Search     string
	Sort       string
	Limit      int
	Offset     int
}

// Page is one page of a listing.
type Page struct {
	Prompts []models.Prompt `json:"prompts"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (f Filter) query() (database.PromptQuery, error) {
	q := database.PromptQuery{
		CategoryID: f.CategoryID,
		OwnerID:    f.OwnerID,
		Search:     f.Search,
		PublicOnly: true,
		Sort:       f.Sort,
		Limit:      clampLimit(f.Limit),
		Offset:     f.Offset,
	}
	if tags := NormalizeTags([]string{f.Tag}); len(tags) == 1 {
		q.Tag = tags[0]
	}
	switch q.Sort {
	case "":
		q.Sort = database.SortNewest
	case database.SortNewest, database.SortTop, database.SortTrending:
	default:
		return q, fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, f.Sort)
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

func listTags(q database.PromptQuery) []cache.Tag {
	tags := []cache.Tag{cache.AllPrompts()}
	if q.CategoryID != nil {
		tags = append(tags, cache.Category(*q.CategoryID))
	}
	if q.Tag != "" {
		tags = append(tags, cache.PromptTag(q.Tag))
	}
	if q.OwnerID != "" {
		tags = append(tags, cache.UserPrompts(q.OwnerID))
	}
	if q.Sort == database.SortTrending {
		tags = append(tags, cache.Trending())
	}
	return tags
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// List returns a filtered, sorted page of public prompts.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}

	key := cache.Key("list", optionalID(q.CategoryID), q.Tag, q.OwnerID, q.Search, q.Sort,
		strconv.Itoa(q.Limit), strconv.Itoa(q.Offset))

	return cache.Fetch(ctx, s.loader, key, listTags(q), func(ctx context.Context) (*Page, error) {
		items, err := s.repo.ListPrompts(ctx, q)
		if err != nil {
			return nil, err
		}
		total, err := s.repo.CountPrompts(ctx, q)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.Prompt{}
		}
		return &Page{Prompts: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
	})
}

// Get returns a prompt visible to viewerID: public, or owned by the viewer.
func (s *Service) Get(ctx context.Context, id int64, viewerID string) (*models.Prompt, error) {
	p, err := cache.Fetch(ctx, s.loader, cache.Key("prompt", strconv.FormatInt(id, 10)), []cache.Tag{cache.Prompt(id)},
		func(ctx context.Context) (*models.Prompt, error) {
			return s.repo.GetPrompt(ctx, id)
		})
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsPublic && p.OwnerID != viewerID {
		return nil, ErrNotFound
	}
	return p, nil
}

// Featured returns featured public prompts, highest voted first.
func (s *Service) Featured(ctx context.Context, limit int) ([]models.Prompt, error) {
	q := database.PromptQuery{FeaturedOnly: true, PublicOnly: true, Sort: database.SortTop, Limit: clampLimit(limit)}
	return cache.Fetch(ctx, s.loader, cache.Key("featured", strconv.Itoa(q.Limit)),
		[]cache.Tag{cache.Featured(), cache.AllPrompts()}, s.listFunc(q))
}

// Trending returns public prompts ranked by recent engagement.
func (s *Service) Trending(ctx context.Context, limit int) ([]models.Prompt, error) {
	q := database.PromptQuery{PublicOnly: true, Sort: database.SortTrending, Limit: clampLimit(limit)}
	return cache.Fetch(ctx, s.loader, cache.Key("trending", strconv.Itoa(q.Limit)),
		[]cache.Tag{cache.Trending(), cache.AllPrompts()}, s.listFunc(q))
}

func (s *Service) listFunc(q database.PromptQuery) func(context.Context) ([]models.Prompt, error) {
	return func(ctx context.Context) ([]models.Prompt, error) {
		items, err := s.repo.ListPrompts(ctx, q)
		if items == nil && err == nil {
			items = []models.Prompt{}
		}
		return items, err
	}
}

// CategoryCounts lists categories with their public prompt counts.
func (s *Service) CategoryCounts(ctx context.Context) ([]models.Category, error) {
	return cache.Fetch(ctx, s.loader, cache.Key("categories"), []cache.Tag{cache.AllPrompts()}, s.repo.CategoryCounts)
}

// UserFavorites lists the prompts userID has favorited, newest favorite first.
func (s *Service) UserFavorites(ctx context.Context, userID string, limit, offset int) ([]models.Prompt, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	key := cache.Key("favorites", userID, strconv.Itoa(limit), strconv.Itoa(offset))
	return cache.Fetch(ctx, s.loader, key, []cache.Tag{cache.UserFavorites(userID), cache.AllPrompts()},
		func(ctx context.Context) ([]models.Prompt, error) {
			items, err := s.repo.ListFavoritePrompts(ctx, userID, limit, offset)
			if items == nil && err == nil {
				items = []models.Prompt{}
			}
			return items, err
		})
}

// UserVotes maps prompt id to userID's vote on it.
func (s *Service) UserVotes(ctx context.Context, userID string) (map[int64]int, error) {
	return cache.Fetch(ctx, s.loader, cache.Key("votes", userID), []cache.Tag{cache.UserVotes(userID)},
		func(ctx context.Context) (map[int64]int, error) {
			return s.repo.ListUserVotes(ctx, userID)
		})
}
