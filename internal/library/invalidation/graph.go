package invalidation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
)

const defaultTimeout = 5 * time.Second

// Invalidator is the part of cache.Store the graph needs.
type Invalidator interface {
	InvalidateTag(ctx context.Context, tag cache.Tag) error
	InvalidatePath(ctx context.Context, path string) error
}

// Graph applies invalidation plans. Every method is best-effort: failures
// are logged and skipped, and nothing is returned to the caller because the
// mutation has already been committed.
type Graph struct {
	store   Invalidator
	logger  zerolog.Logger
	timeout time.Duration
}

// New creates a graph. A nil store makes every operation a no-op.
func New(store Invalidator, logger zerolog.Logger) *Graph {
	return &Graph{store: store, logger: logger, timeout: defaultTimeout}
}

// Apply computes the plan for ev and invalidates every tag and path in it
// before returning. The plan is returned for logging and tests.
func (g *Graph) Apply(ctx context.Context, ev Event) Plan {
	plan := PlanFor(ev)
	if g == nil || g.store == nil {
		return plan
	}

	// the write is committed; a cancelled request must not skip invalidation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	failed := 0
	for _, tag := range plan.Tags {
		if err := g.safely(func() error { return g.store.InvalidateTag(ctx, tag) }); err != nil {
			failed++
			g.logger.Warn().Err(err).Str("event", ev.Kind.String()).Str("tag", tag.String()).Msg("cache tag invalidation failed")
		}
	}
	for _, path := range plan.Paths {
		if err := g.safely(func() error { return g.store.InvalidatePath(ctx, path) }); err != nil {
			failed++
			g.logger.Warn().Err(err).Str("event", ev.Kind.String()).Str("path", path).Msg("page invalidation failed")
		}
	}

	g.logger.Debug().
		Str("event", ev.Kind.String()).
		Int64("prompt_id", ev.PromptID).
		Int("tags", len(plan.Tags)).
		Int("paths", len(plan.Paths)).
		Int("failed", failed).
		Msg("cache invalidated")
	return plan
}

func (g *Graph) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (g *Graph) OnPromptCreated(ctx context.Context, promptID int64, ownerID string, categoryID *int64, tags []string) {
	g.Apply(ctx, Event{Kind: PromptCreated, PromptID: promptID, UserID: ownerID, NewCategoryID: categoryID, NewTags: tags})
}

func (g *Graph) OnPromptUpdated(ctx context.Context, promptID int64, ownerID string, oldCategoryID, newCategoryID *int64, oldTags, newTags []string) {
	g.Apply(ctx, Event{
		Kind:          PromptUpdated,
		PromptID:      promptID,
		UserID:        ownerID,
		OldCategoryID: oldCategoryID,
		NewCategoryID: newCategoryID,
		OldTags:       oldTags,
		NewTags:       newTags,
	})
}

func (g *Graph) OnPromptDeleted(ctx context.Context, promptID int64, ownerID string, categoryID *int64, tags []string) {
	g.Apply(ctx, Event{Kind: PromptDeleted, PromptID: promptID, UserID: ownerID, NewCategoryID: categoryID, NewTags: tags})
}

// OnPromptForked invalidates what a create does plus the parent prompt,
// whose fork count changed.
func (g *Graph) OnPromptForked(ctx context.Context, promptID, parentID int64, ownerID string, categoryID *int64, tags []string) {
	g.Apply(ctx, Event{Kind: PromptForked, PromptID: promptID, ParentID: parentID, UserID: ownerID, NewCategoryID: categoryID, NewTags: tags})
}

func (g *Graph) OnVoteChanged(ctx context.Context, promptID int64, userID string) {
	g.Apply(ctx, Event{Kind: VoteChanged, PromptID: promptID, UserID: userID})
}

func (g *Graph) OnFavoriteToggled(ctx context.Context, promptID int64, userID string) {
	g.Apply(ctx, Event{Kind: FavoriteToggled, PromptID: promptID, UserID: userID})
}
