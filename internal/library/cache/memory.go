package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryStore is a bounded in-process Store. It is used when Redis is
// disabled and in tests. Entries are dropped on TTL expiry, on LRU
// eviction, or when one of their tags is invalidated.
type MemoryStore struct {
	mu       sync.Mutex
	cache    *lru.Cache
	index    map[string]map[string]struct{}
	versions map[string]int64
	now      func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// NewMemoryStore creates a store holding at most maxEntries values and pages.
func NewMemoryStore(maxEntries int) (*MemoryStore, error) {
	s := &MemoryStore{
		index:    make(map[string]map[string]struct{}),
		versions: make(map[string]int64),
		now:      time.Now,
	}
	cache, err := lru.NewWithEvict(maxEntries, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// onEvict runs synchronously inside cache calls, which always happen with
// s.mu held.
func (s *MemoryStore) onEvict(key, value interface{}) {
	entry := value.(memoryEntry)
	for _, t := range entry.tags {
		members := s.index[t]
		delete(members, key.(string))
		if len(members) == 0 {
			delete(s.index, t)
		}
	}
}

func (s *MemoryStore) get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, found := s.cache.Get(key)
	if !found {
		return nil, ErrMiss
	}
	entry := val.(memoryEntry)
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (s *MemoryStore) set(key string, value []byte, ttl time.Duration, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl, tags)
}

// setStamped writes only if every version in stamp is still current.
func (s *MemoryStore) setStamped(key string, value []byte, ttl time.Duration, tags []string, stamp Stamp) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, k := range stamp.keys {
		if s.versions[k] != stamp.versions[i] {
			return false
		}
	}
	s.setLocked(key, value, ttl, tags)
	return true
}

func (s *MemoryStore) stamp(keys []string) Stamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := make([]int64, len(keys))
	for i, k := range keys {
		versions[i] = s.versions[k]
	}
	return newStamp(keys, versions)
}

func (s *MemoryStore) setLocked(key string, value []byte, ttl time.Duration, tags []string) {
	// replacing an entry must not leave it indexed under its old tags
	s.cache.Remove(key)

	entry := memoryEntry{value: value, tags: tags}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	for _, t := range tags {
		members, ok := s.index[t]
		if !ok {
			members = make(map[string]struct{})
			s.index[t] = members
		}
		members[key] = struct{}{}
	}
	s.cache.Add(key, entry)
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(key)
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...Tag) error {
	s.set(key, value, ttl, tagNames(tags))
	return nil
}

func (s *MemoryStore) Stamp(ctx context.Context, tags ...Tag) (Stamp, error) {
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = tagVersionKey(t)
	}
	return s.stamp(keys), nil
}

func (s *MemoryStore) SetStamped(ctx context.Context, key string, value []byte, ttl time.Duration, stamp Stamp, tags ...Tag) (bool, error) {
	return s.setStamped(key, value, ttl, tagNames(tags), stamp), nil
}

func (s *MemoryStore) InvalidateTag(ctx context.Context, tag Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions[tagVersionKey(tag)]++

	members := s.index[tag.String()]
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	for _, k := range keys {
		s.cache.Remove(k)
	}
	delete(s.index, tag.String())
	return nil
}

func (s *MemoryStore) GetPage(ctx context.Context, path string) ([]byte, error) {
	return s.get(pageKey(path))
}

func (s *MemoryStore) SetPage(ctx context.Context, path string, body []byte, ttl time.Duration) error {
	s.set(pageKey(path), body, ttl, nil)
	return nil
}

func (s *MemoryStore) PageStamp(ctx context.Context, path string) (Stamp, error) {
	return s.stamp([]string{pageVersionKey(path)}), nil
}

func (s *MemoryStore) SetPageStamped(ctx context.Context, path string, body []byte, ttl time.Duration, stamp Stamp) (bool, error) {
	return s.setStamped(pageKey(path), body, ttl, nil, stamp), nil
}

func (s *MemoryStore) InvalidatePath(ctx context.Context, path string) error {
	s.mu.Lock()
	s.versions[pageVersionKey(path)]++
	s.cache.Remove(pageKey(path))
	s.mu.Unlock()
	return nil
}

func tagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return names
}

// Len reports the number of live entries, including expired ones not yet
// read.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
