package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestGet_MissingKey(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetIndexed_DeleteIndexed(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetIndexed(ctx, "k1", "v1", time.Minute, "idx:a", "idx:b"))
	require.NoError(t, c.SetIndexed(ctx, "k2", "v2", time.Minute, "idx:a"))

	n, err := c.DeleteIndexed(ctx, "idx:a", "ver:a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("k1"))
	assert.False(t, mr.Exists("k2"))
	assert.False(t, mr.Exists("idx:a"))
	mr.CheckGet(t, "ver:a", "1")

	// idx:b still references k1, but deleting it again is harmless
	n, err = c.DeleteIndexed(ctx, "idx:b", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.DeleteIndexed(ctx, "idx:missing", "ver:missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	mr.CheckGet(t, "ver:missing", "1")
}

func TestVersions_MissingReadsZero(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("ver:x", "4"))

	got, err := c.Versions(context.Background(), "ver:x", "ver:y")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 0}, got)
}

func TestSetIndexedAt_WritesOnlyAtMatchingVersions(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetIndexedAt(ctx, "k", "v1", time.Minute, []string{"idx:a"}, []string{"ver:a"}, []int64{0})
	require.NoError(t, err)
	assert.True(t, ok)
	mr.CheckGet(t, "k", "v1")
	assert.True(t, mr.Exists("idx:a"))

	_, err = c.DeleteIndexed(ctx, "idx:a", "ver:a")
	require.NoError(t, err)

	ok, err = c.SetIndexedAt(ctx, "k", "stale", time.Minute, []string{"idx:a"}, []string{"ver:a"}, []int64{0})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("k"))
	assert.False(t, mr.Exists("idx:a"))

	ok, err = c.SetIndexedAt(ctx, "k", "v2", time.Minute, []string{"idx:a"}, []string{"ver:a"}, []int64{1})
	require.NoError(t, err)
	assert.True(t, ok)
	mr.CheckGet(t, "k", "v2")

	_, err = c.SetIndexedAt(ctx, "k", "v3", time.Minute, nil, []string{"ver:a"}, nil)
	assert.Error(t, err)
}

func TestDeleteVersioned(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "page:/", "<home>", time.Minute))

	require.NoError(t, c.DeleteVersioned(ctx, "page:/", "ver:page:/"))
	assert.False(t, mr.Exists("page:/"))
	mr.CheckGet(t, "ver:page:/", "1")
}

func TestCheckRateLimit(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exceeded, remaining, err := c.CheckRateLimit(ctx, "user-1", 3)
		require.NoError(t, err)
		assert.False(t, exceeded)
		assert.Equal(t, 2-i, remaining)
	}

	exceeded, remaining, err := c.CheckRateLimit(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.True(t, exceeded)
	assert.Equal(t, 0, remaining)

	mr.FastForward(time.Minute + time.Second)

	exceeded, _, err = c.CheckRateLimit(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.False(t, exceeded)
}
