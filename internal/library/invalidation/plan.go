// Package invalidation maps prompt-library mutations to the cache tags and
// page paths they make stale.
package invalidation

import "github.com/mrmushfiq/promptlib/internal/library/cache"

// EventKind identifies the mutation that happened.
type EventKind int

const (
	PromptCreated EventKind = iota + 1
	PromptUpdated
	PromptDeleted
	PromptForked
	VoteChanged
	FavoriteToggled
)

func (k EventKind) String() string {
	switch k {
	case PromptCreated:
		return "prompt_created"
	case PromptUpdated:
		return "prompt_updated"
	case PromptDeleted:
		return "prompt_deleted"
	case PromptForked:
		return "prompt_forked"
	case VoteChanged:
		return "vote_changed"
	case FavoriteToggled:
		return "favorite_toggled"
	}
	return "unknown"
}

// Event describes a committed write. UserID is the prompt owner for prompt
// events and the acting user for votes and favorites. For creates, deletes
// and forks only the New* fields are read. ParentID is set for forks.
type Event struct {
	Kind          EventKind
	PromptID      int64
	ParentID      int64
	UserID        string
	OldCategoryID *int64
	NewCategoryID *int64
	OldTags       []string
	NewTags       []string
}

// Plan is the exact, de-duplicated set of invalidations for one event, in
// first-added order.
type Plan struct {
	Tags  []cache.Tag
	Paths []string
}

type planBuilder struct {
	plan      Plan
	seenTags  map[cache.Tag]struct{}
	seenPaths map[string]struct{}
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{
		seenTags:  make(map[cache.Tag]struct{}),
		seenPaths: make(map[string]struct{}),
	}
}

func (b *planBuilder) tag(tags ...cache.Tag) {
	for _, t := range tags {
		if _, ok := b.seenTags[t]; ok {
			continue
		}
		b.seenTags[t] = struct{}{}
		b.plan.Tags = append(b.plan.Tags, t)
	}
}

func (b *planBuilder) path(paths ...string) {
	for _, p := range paths {
		if _, ok := b.seenPaths[p]; ok {
			continue
		}
		b.seenPaths[p] = struct{}{}
		b.plan.Paths = append(b.plan.Paths, p)
	}
}

func (b *planBuilder) category(id *int64) {
	if id == nil {
		return
	}
	b.tag(cache.Category(*id))
	b.path(cache.CategoryPath(*id))
}

func (b *planBuilder) tagList(tags []string) {
	for _, t := range tags {
		b.tag(cache.PromptTag(t))
		b.path(cache.TagPath(t))
	}
}

// PlanFor computes the invalidations for ev. It has no side effects.
func PlanFor(ev Event) Plan {
	b := newPlanBuilder()

	switch ev.Kind {
	case PromptCreated:
		planCreated(b, ev)

	case PromptForked:
		planCreated(b, ev)
		b.tag(cache.Prompt(ev.ParentID))

	case PromptUpdated:
		b.tag(cache.Prompt(ev.PromptID), cache.AllPrompts(), cache.UserPrompts(ev.UserID))
		b.path(cache.PathRoot, cache.PathShowcase)
		b.category(ev.OldCategoryID)
		b.category(ev.NewCategoryID)
		b.tagList(ev.OldTags)
		b.tagList(ev.NewTags)

	case PromptDeleted:
		b.tag(cache.Prompt(ev.PromptID), cache.AllPrompts(), cache.Featured(), cache.Trending(), cache.UserPrompts(ev.UserID))
		b.path(cache.PathRoot, cache.PathShowcase)
		b.category(ev.NewCategoryID)
		b.tagList(ev.NewTags)

	case VoteChanged:
		b.tag(cache.Prompt(ev.PromptID), cache.UserVotes(ev.UserID), cache.AllPrompts(), cache.Featured())

	case FavoriteToggled:
		b.tag(cache.Prompt(ev.PromptID), cache.UserFavorites(ev.UserID), cache.AllPrompts())
		b.path(cache.PathFavorites, cache.PathRoot)
	}

	return b.plan
}

func planCreated(b *planBuilder, ev Event) {
	b.tag(cache.AllPrompts(), cache.Trending(), cache.UserPrompts(ev.UserID))
	b.path(cache.PathRoot, cache.PathShowcase)
	b.category(ev.NewCategoryID)
	b.tagList(ev.NewTags)
}
