package interfaces

import "time"

// -----------------------------------------------------------------------------
// ICache defines the contract for the TTL cache shared by the fetchers and
// the aggregation layer. Implementations must tolerate concurrent readers
// and writers; same-key writes may be last-write-wins.
// -----------------------------------------------------------------------------

type ICache interface {

	// Get returns the raw bytes for a key, or false on miss/expiry.
	Get(key string) ([]byte, bool)

	// -----------------------------------------------------------------------------

	// GetInto unmarshals the cached JSON value into dest; false on miss.
	GetInto(key string, dest interface{}) bool

	// -----------------------------------------------------------------------------

	// Set stores a value (marshaled to JSON unless already bytes) with a TTL.
	Set(key string, value interface{}, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	// Delete removes a single key.
	Delete(key string)

	// -----------------------------------------------------------------------------

	// ClearByPattern removes every key matching a glob and returns the count.
	ClearByPattern(pattern string) int

	// -----------------------------------------------------------------------------

	// ClearAll drops every entry.
	ClearAll()
}

// -----------------------------------------------------------------------------
// IRateLimiter governs per-source call budgets inside rolling windows.
// -----------------------------------------------------------------------------

type IRateLimiter interface {

	// TryAcquire consumes one budget unit if available. Never blocks and
	// never errors; callers decide whether to wait, fall back or fail.
	TryAcquire(sourceID string) (allowed bool, resetAt time.Time)

	// -----------------------------------------------------------------------------

	// Reset clears every window (constructed once per process, reset in tests).
	Reset()
}
