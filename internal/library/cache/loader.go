package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader is a read-through cache in front of a Store. Concurrent misses on
// the same key share one load. A load that overlaps an invalidation of one
// of its tags is returned to its callers but not cached. Store failures are
// logged and the value is loaded directly, so an unavailable cache never
// fails a read.
type Loader struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

// NewLoader creates a loader. A nil store disables caching.
func NewLoader(store Store, ttl time.Duration, logger zerolog.Logger) *Loader {
	return &Loader{store: store, ttl: ttl, logger: logger}
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return "q:" + strings.Join(parts, ":")
}

// Fetch returns the cached value at key or calls load, caches its result
// under tags and returns it.
func Fetch[T any](ctx context.Context, l *Loader, key string, tags []Tag, load func(context.Context) (T, error)) (T, error) {
	var out T
	if l == nil || l.store == nil {
		return load(ctx)
	}

	data, err := l.store.Get(ctx, key)
	if err == nil {
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		l.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, ErrMiss) {
		l.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	stamp, err := l.store.Stamp(ctx, tags...)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("cache stamp failed, loading uncached")
		return load(ctx)
	}

	// Callers only share a load started at the same tag versions, so a
	// reader arriving after an invalidation never receives a result loaded
	// before it. The shared load runs detached from any one caller's
	// cancellation.
	shared, err, _ := l.group.Do(key+"@"+stamp.String(), func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		written, err := l.store.SetStamped(loadCtx, key, encoded, l.ttl, stamp, tags...)
		if err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		} else if !written {
			l.logger.Debug().Str("key", key).Msg("skipped cache write invalidated during load")
		}
		return encoded, nil
	})
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(shared.([]byte), &out); err != nil {
		return out, err
	}
	return out, nil
}
