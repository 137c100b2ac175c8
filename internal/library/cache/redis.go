package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrmushfiq/promptlib/internal/shared/redis"
)

// RedisStore keeps values in Redis and one Redis set per tag listing the
// keys cached under it.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store on top of an existing Redis client
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// Get retrieves a cached value
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return []byte(val), nil
}

// Set stores a value and indexes it under every tag
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...Tag) error {
	if err := s.redis.SetIndexed(ctx, key, string(value), ttl, tagKeys(tags)...); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Stamp reads the current version of every tag
func (s *RedisStore) Stamp(ctx context.Context, tags ...Tag) (Stamp, error) {
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = tagVersionKey(t)
	}
	return s.stamp(ctx, keys)
}

// SetStamped is Set, skipped when a tag was invalidated after stamp was taken
func (s *RedisStore) SetStamped(ctx context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...Tag) (bool, error) {
	ok, err := s.redis.SetIndexedAt(ctx, key, string(value), ttl, tagKeys(tags), stamp.keys, stamp.versions)
	if err != nil {
		return false, fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return ok, nil
}

// InvalidateTag drops every value cached under the tag and bumps its version
func (s *RedisStore) InvalidateTag(ctx context.Context, tag Tag) error {
	if _, err := s.redis.DeleteIndexed(ctx, tagKey(tag), tagVersionKey(tag)); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", tag, err)
	}
	return nil
}

// GetPage retrieves a cached page body
func (s *RedisStore) GetPage(ctx context.Context, path string) ([]byte, error) {
	return s.Get(ctx, pageKey(path))
}

// SetPage stores a page body
func (s *RedisStore) SetPage(ctx context.Context, path string, body []byte, ttl time.Duration) error {
	return s.redis.Set(ctx, pageKey(path), string(body), ttl)
}

// PageStamp reads the current version of the page at path
func (s *RedisStore) PageStamp(ctx context.Context, path string) (Stamp, error) {
	return s.stamp(ctx, []string{pageVersionKey(path)})
}

// SetPageStamped is SetPage, skipped when the path was invalidated after
// stamp was taken
func (s *RedisStore) SetPageStamped(ctx context.Context, path string, body []byte, ttl time.Duration, stamp Stamp) (bool, error) {
	ok, err := s.redis.SetIndexedAt(ctx, pageKey(path), string(body), ttl, nil, stamp.keys, stamp.versions)
	if err != nil {
		return false, fmt.Errorf("failed to write page %s: %w", path, err)
	}
	return ok, nil
}

// InvalidatePath drops the cached page at path and bumps its version
func (s *RedisStore) InvalidatePath(ctx context.Context, path string) error {
	if err := s.redis.DeleteVersioned(ctx, pageKey(path), pageVersionKey(path)); err != nil {
		return fmt.Errorf("failed to invalidate page %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) stamp(ctx context.Context, keys []string) (Stamp, error) {
	versions, err := s.redis.Versions(ctx, keys...)
	if err != nil {
		return Stamp{}, fmt.Errorf("failed to read cache versions: %w", err)
	}
	return newStamp(keys, versions), nil
}

func tagKeys(tags []Tag) []string {
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = tagKey(t)
	}
	return keys
}
