package cache

import (
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// In-memory TTL cache for upstream responses.
//
// Entries carry an absolute expiry; an expired entry behaves exactly like a
// missing one and is purged lazily on the read path. There is no background
// sweeper: the entry count is bounded by the key space (source x query), so
// stale entries are reclaimed the next time their key is touched.
// -----------------------------------------------------------------------------

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// -----------------------------------------------------------------------------

// TTLCache is safe for concurrent use by the fetchers and the API handlers.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time // swappable clock for tests
}

// -----------------------------------------------------------------------------

func NewTTLCache() *TTLCache {
	return &TTLCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// Get returns the raw cached bytes for key, or ok=false when the key is
// absent or its TTL has elapsed. Expired entries are removed on the spot.
func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// -----------------------------------------------------------------------------

// GetInto unmarshals the cached JSON value for key into dest.
func (c *TTLCache) GetInto(key string, dest interface{}) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// -----------------------------------------------------------------------------

// Set stores value under key with the given TTL. Non-byte values are
// serialized as JSON.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache: marshal value for key %s: %w", key, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		value:     raw,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// -----------------------------------------------------------------------------

// Delete removes a single key. Removing an absent key is a no-op.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// -----------------------------------------------------------------------------

// ClearByPattern removes every key matching the glob pattern (path.Match
// syntax, e.g. "prices:*") and returns the number of removed entries.
func (c *TTLCache) ClearByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------

// ClearAll drops every entry.
func (c *TTLCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// -----------------------------------------------------------------------------

// Len reports the number of live entries, counting expired-but-unpurged ones.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
