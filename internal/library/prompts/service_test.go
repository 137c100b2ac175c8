package prompts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/promptlib/internal/library/cache"
	"github.com/mrmushfiq/promptlib/internal/library/invalidation"
	"github.com/mrmushfiq/promptlib/internal/shared/database"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// memRepo is an in-memory Repository that counts reads so tests can see
// when the cache was bypassed.
type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	prompts   map[int64]*models.Prompt
	votes     map[int64]map[string]int
	favorites map[int64]map[string]bool
	listCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		prompts:   make(map[int64]*models.Prompt),
		votes:     make(map[int64]map[string]int),
		favorites: make(map[int64]map[string]bool),
	}
}

func (r *memRepo) matches(p *models.Prompt, q database.PromptQuery) bool {
	if q.PublicOnly && !p.IsPublic {
		return false
	}
	if q.FeaturedOnly && !p.IsFeatured {
		return false
	}
	if q.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *q.CategoryID) {
		return false
	}
	if q.OwnerID != "" && p.OwnerID != q.OwnerID {
		return false
	}
	if q.Tag != "" {
		found := false
		for _, t := range p.Tags {
			found = found || t == q.Tag
		}
		if !found {
			return false
		}
	}
	return q.Search == "" || strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Search))
}

func (r *memRepo) ListPrompts(ctx context.Context, q database.PromptQuery) ([]models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	var out []models.Prompt
	for _, p := range r.prompts {
		if r.matches(p, q) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Sort == database.SortTop && out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		return out[i].ID > out[j].ID
	})
	if q.Offset >= len(out) {
		return []models.Prompt{}, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memRepo) CountPrompts(ctx context.Context, q database.PromptQuery) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.prompts {
		if r.matches(p, q) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) GetPrompt(ctx context.Context, id int64) (*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) InsertPrompt(ctx context.Context, p *models.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.prompts[p.ID] = &cp
	return nil
}

func (r *memRepo) UpdatePrompt(ctx context.Context, p *models.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.prompts[p.ID]
	if !ok || existing.OwnerID != p.OwnerID {
		return database.ErrNotFound
	}
	cp := *p
	r.prompts[p.ID] = &cp
	return nil
}

func (r *memRepo) DeletePrompt(ctx context.Context, id int64, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[id]
	if !ok || p.OwnerID != ownerID {
		return database.ErrNotFound
	}
	delete(r.prompts, id)
	return nil
}

func (r *memRepo) IncrementForkCount(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.prompts[id]; ok {
		p.ForkCount++
	}
	return nil
}

func (r *memRepo) CategoryCounts(ctx context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int64]int{}
	for _, p := range r.prompts {
		if p.IsPublic && p.CategoryID != nil {
			counts[*p.CategoryID]++
		}
	}
	var out []models.Category
	for id, n := range counts {
		out = append(out, models.Category{ID: id, PromptCount: n})
	}
	return out, nil
}

func (r *memRepo) SetVote(ctx context.Context, promptID int64, userID string, value int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[promptID]
	if !ok {
		return 0, database.ErrNotFound
	}
	if r.votes[promptID] == nil {
		r.votes[promptID] = map[string]int{}
	}
	p.VoteCount += value - r.votes[promptID][userID]
	if value == 0 {
		delete(r.votes[promptID], userID)
	} else {
		r.votes[promptID][userID] = value
	}
	return p.VoteCount, nil
}

func (r *memRepo) ToggleFavorite(ctx context.Context, promptID int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[promptID]
	if !ok {
		return false, database.ErrNotFound
	}
	if r.favorites[promptID] == nil {
		r.favorites[promptID] = map[string]bool{}
	}
	now := !r.favorites[promptID][userID]
	r.favorites[promptID][userID] = now
	if now {
		p.FavoriteCount++
	} else {
		p.FavoriteCount--
	}
	return now, nil
}

func (r *memRepo) ListFavoritePrompts(ctx context.Context, userID string, limit, offset int) ([]models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Prompt{}
	for id, users := range r.favorites {
		p, ok := r.prompts[id]
		if !ok || !users[userID] {
			continue
		}
		if !p.IsPublic && p.OwnerID != userID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) ListUserVotes(ctx context.Context, userID string) (map[int64]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]int{}
	for id, users := range r.votes {
		if v, ok := users[userID]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (r *memRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

func newTestService(t *testing.T) (*Service, *memRepo, *cache.MemoryStore) {
	t.Helper()
	store, err := cache.NewMemoryStore(256)
	require.NoError(t, err)
	repo := newMemRepo()
	svc := NewService(repo,
		cache.NewLoader(store, time.Hour, zerolog.Nop()),
		invalidation.New(store, zerolog.Nop()),
		zerolog.Nop(),
	)
	return svc, repo, store
}

func catID(v int64) *int64 { return &v }

func validInput() Input {
	return Input{Title: "SQL explainer", Content: "Explain this query: {{query}}", CategoryID: catID(5), Tags: []string{"SQL", "ml"}}
}

func TestCreate_ReadAfterWrite(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)

	// served from cache
	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls())

	created, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"sql", "ml"}, created.Tags)
	assert.True(t, created.IsPublic)

	page, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, created.ID, page.Prompts[0].ID)

	byTag, err := svc.List(ctx, Filter{Tag: " SQL "})
	require.NoError(t, err)
	assert.Equal(t, 1, byTag.Total)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		mod  func(*Input)
	}{
		{"empty title", func(in *Input) { in.Title = "   " }},
		{"long title", func(in *Input) { in.Title = strings.Repeat("t", MaxTitleLength+1) }},
		{"empty content", func(in *Input) { in.Content = "\n" }},
		{"long content", func(in *Input) { in.Content = strings.Repeat("c", MaxContentLength+1) }},
		{"too many tags", func(in *Input) {
			in.Tags = nil
			for i := 0; i <= MaxTags; i++ {
				in.Tags = append(in.Tags, strings.Repeat("x", i+1))
			}
		}},
		{"bad category", func(in *Input) { in.CategoryID = catID(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mod(&in)
			_, err := svc.Create(context.Background(), "U", in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" SQL", "sql", "", "ML ", "  ", "Ml", "go"})
	assert.Equal(t, []string{"sql", "ml", "go"}, got)

	in := validInput()
	in.Tags = []string{"a", "A", "a ", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	out, err := in.normalize()
	require.NoError(t, err, "duplicates collapse before the limit applies")
	assert.Len(t, out.Tags, 10)
}

func TestUpdate_InvalidatesOldAndNewCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)

	inFive, err := svc.List(ctx, Filter{CategoryID: catID(5)})
	require.NoError(t, err)
	assert.Equal(t, 1, inFive.Total)

	in := validInput()
	in.CategoryID = catID(6)
	in.Tags = []string{"ml"}
	_, err = svc.Update(ctx, "U", created.ID, in)
	require.NoError(t, err)

	inFive, err = svc.List(ctx, Filter{CategoryID: catID(5)})
	require.NoError(t, err)
	assert.Equal(t, 0, inFive.Total)

	inSix, err := svc.List(ctx, Filter{CategoryID: catID(6)})
	require.NoError(t, err)
	assert.Equal(t, 1, inSix.Total)

	sqlTagged, err := svc.List(ctx, Filter{Tag: "sql"})
	require.NoError(t, err)
	assert.Equal(t, 0, sqlTagged.Total)

	got, err := svc.Get(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ml"}, got.Tags)
}

func TestUpdate_Ownership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	public, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, "intruder", public.ID, validInput())
	assert.ErrorIs(t, err, ErrForbidden)

	private := validInput()
	private.IsPublic = new(bool)
	hidden, err := svc.Create(ctx, "U", private)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "intruder", hidden.ID, validInput())
	assert.ErrorIs(t, err, ErrNotFound, "private prompts do not leak their existence")

	assert.ErrorIs(t, svc.Delete(ctx, "intruder", public.ID), ErrForbidden)
	_, err = svc.Update(ctx, "U", 999, validInput())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RemovesFromCachedReads(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID, "")
	require.NoError(t, err)
	counts, err := svc.CategoryCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)

	require.NoError(t, svc.Delete(ctx, "U", created.ID))

	_, err = svc.Get(ctx, created.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	counts, err = svc.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestGet_PrivateVisibleOnlyToOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := validInput()
	in.IsPublic = new(bool)
	p, err := svc.Create(ctx, "U", in)
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, "someone")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(ctx, p.ID, "U")
	require.NoError(t, err)
	assert.False(t, got.IsPublic)

	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestFork(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	source, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)
	_, err = svc.Get(ctx, source.ID, "")
	require.NoError(t, err)

	fork, err := svc.Fork(ctx, "V", source.ID)
	require.NoError(t, err)
	assert.Equal(t, "V", fork.OwnerID)
	require.NotNil(t, fork.ForkedFromID)
	assert.Equal(t, source.ID, *fork.ForkedFromID)
	assert.Equal(t, source.Content, fork.Content)

	parent, err := svc.Get(ctx, source.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, parent.ForkCount, "parent prompt cache was invalidated")

	mine, err := svc.List(ctx, Filter{OwnerID: "V"})
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Total)
}

func TestVote(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)

	votes, err := svc.UserVotes(ctx, "V")
	require.NoError(t, err)
	assert.Empty(t, votes)

	count, err := svc.Vote(ctx, "V", p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.Vote(ctx, "V", p.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, count, "switching a vote moves the count by two")

	votes, err = svc.UserVotes(ctx, "V")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{p.ID: -1}, votes)

	count, err = svc.Vote(ctx, "V", p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = svc.Vote(ctx, "V", p.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Vote(ctx, "V", 404, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleFavorite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)

	favs, err := svc.UserFavorites(ctx, "V", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, favs)

	on, err := svc.ToggleFavorite(ctx, "V", p.ID)
	require.NoError(t, err)
	assert.True(t, on)

	favs, err = svc.UserFavorites(ctx, "V", 0, 0)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, 1, favs[0].FavoriteCount)

	off, err := svc.ToggleFavorite(ctx, "V", p.ID)
	require.NoError(t, err)
	assert.False(t, off)

	favs, err = svc.UserFavorites(ctx, "V", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestUserFavorites_HidesPromptMadePrivate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)
	for _, user := range []string{"U", "V"} {
		_, err := svc.ToggleFavorite(ctx, user, p.ID)
		require.NoError(t, err)
		favs, err := svc.UserFavorites(ctx, user, 0, 0)
		require.NoError(t, err)
		require.Len(t, favs, 1, user)
	}

	private := false
	in := validInput()
	in.IsPublic = &private
	_, err = svc.Update(ctx, "U", p.ID, in)
	require.NoError(t, err)

	favs, err := svc.UserFavorites(ctx, "V", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, favs)

	favs, err = svc.UserFavorites(ctx, "U", 0, 0)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.False(t, favs[0].IsPublic)
}

func TestFeaturedAndTrending(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)
	repo.prompts[a.ID].IsFeatured = true

	featured, err := svc.Featured(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	trending, err := svc.Trending(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, trending, 1)

	require.NoError(t, svc.Delete(ctx, "U", a.ID))

	featured, err = svc.Featured(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, featured)
	trending, err = svc.Trending(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, trending)
}

func TestList_FilterNormalization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.List(ctx, Filter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, page.Limit)
	assert.NotNil(t, page.Prompts)

	_, err = svc.List(ctx, Filter{Sort: "random"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_WorksWithoutCache(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, cache.NewLoader(nil, time.Hour, zerolog.Nop()), invalidation.New(nil, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "U", validInput())
	require.NoError(t, err)
	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
