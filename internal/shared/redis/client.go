package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

type Client struct {
	client *redis.Client
}

// New creates a new Redis client
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}

	return &Client{client: client}, nil
}

// Wrap adapts an existing go-redis client.
func Wrap(client *redis.Client) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Get retrieves a value by key
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value with TTL
func (c *Client) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// SetIndexed stores a value and records its key in every index set, in a
// single round trip. Index sets live at least as long as the value.
func (c *Client) SetIndexed(ctx context.Context, key, value string, ttl time.Duration, indexes ...string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, idx := range indexes {
			pipe.SAdd(ctx, idx, key)
			if ttl > 0 {
				pipe.Expire(ctx, idx, ttl)
			}
		}
		return nil
	})
	return err
}

// Versions reads version counters. Missing counters read as 0.
func (c *Client) Versions(ctx context.Context, keys ...string) ([]int64, error) {
	out := make([]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("version %s is not a counter: %w", keys[i], err)
			}
			out[i] = n
		}
	}
	return out, nil
}

// SetIndexedAt is SetIndexed guarded by version counters. The write only
// happens if every counter in versionKeys still holds the matching value in
// want; it reports whether it wrote.
func (c *Client) SetIndexedAt(ctx context.Context, key, value string, ttl time.Duration, indexes, versionKeys []string, want []int64) (bool, error) {
	if len(versionKeys) != len(want) {
		return false, fmt.Errorf("got %d versions for %d counters", len(want), len(versionKeys))
	}
	if len(versionKeys) == 0 {
		return true, c.SetIndexed(ctx, key, value, ttl, indexes...)
	}

	written := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, versionKeys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			var current int64
			if s, ok := v.(string); ok {
				current, _ = strconv.ParseInt(s, 10, 64)
			}
			if current != want[i] {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			for _, idx := range indexes {
				pipe.SAdd(ctx, idx, key)
				if ttl > 0 {
					pipe.Expire(ctx, idx, ttl)
				}
			}
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}, versionKeys...)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return written, err
}

// deleteIndexedScript bumps the version counter, then deletes every member
// of the index set and the set itself, as one atomic step.
var deleteIndexedScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
if KEYS[2] then
	redis.call('INCR', KEYS[2])
end
for i = 1, #members, 500 do
	redis.call('DEL', unpack(members, i, math.min(i + 499, #members)))
end
redis.call('DEL', KEYS[1])
return #members
`)

// DeleteIndexed removes every key recorded in the index set, then the set
// itself, atomically. When versionKey is set its counter is bumped in the
// same step. Deleting an empty or missing index is a no-op.
func (c *Client) DeleteIndexed(ctx context.Context, index, versionKey string) (int, error) {
	keys := []string{index}
	if versionKey != "" {
		keys = append(keys, versionKey)
	}
	n, err := deleteIndexedScript.Run(ctx, c.client, keys).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteVersioned removes key and bumps versionKey in one transaction.
func (c *Client) DeleteVersioned(ctx context.Context, key, versionKey string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

// Del removes keys. Missing keys are ignored.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Incr increments a counter
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on a key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// CheckRateLimit counts a request against a fixed one-minute window.
// It returns whether the limit is exceeded and how many requests remain.
func (c *Client) CheckRateLimit(ctx context.Context, subject string, limit int) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s", subject)

	newCount, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	// First request in this window starts the window
	if newCount == 1 {
		if err := c.client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return false, 0, err
		}
	}

	count := int(newCount)
	if count > limit {
		return true, 0, nil
	}
	return false, limit - count, nil
}
