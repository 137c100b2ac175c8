package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get and GetPage when nothing is cached.
var ErrMiss = errors.New("cache miss")

// Store is the cache substrate. Invalidating an unknown tag or path is a
// no-op, never an error. Every invalidation bumps the version of its tag or
// path, which makes writes stamped before it fail.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...Tag) error
	InvalidateTag(ctx context.Context, tag Tag) error

	// Stamp captures the current versions of tags. SetStamped writes only
	// if none of them changed since and reports whether it wrote.
	Stamp(ctx context.Context, tags ...Tag) (Stamp, error)
	SetStamped(ctx context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...Tag) (bool, error)

	GetPage(ctx context.Context, path string) ([]byte, error)
	SetPage(ctx context.Context, path string, body []byte, ttl time.Duration) error
	InvalidatePath(ctx context.Context, path string) error

	PageStamp(ctx context.Context, path string) (Stamp, error)
	SetPageStamped(ctx context.Context, path string, body []byte, ttl time.Duration, stamp Stamp) (bool, error)
}

const (
	pagePrefix = "page:"
	tagPrefix  = "tag:"
)

func pageKey(path string) string { return pagePrefix + path }
func tagKey(t Tag) string        { return tagPrefix + t.String() }
