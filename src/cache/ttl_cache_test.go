package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache() (*TTLCache, *time.Time) {
	c := NewTTLCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

// -----------------------------------------------------------------------------

func TestSetAndGet(t *testing.T) {
	c, _ := testCache()

	require.NoError(t, c.Set("prices:current:bitcoin", []byte(`{"usd":45000}`), 30*time.Second))

	raw, ok := c.Get("prices:current:bitcoin")
	require.True(t, ok)
	assert.Equal(t, `{"usd":45000}`, string(raw))
}

// -----------------------------------------------------------------------------

func TestExpiredEntryIsAMiss(t *testing.T) {
	c, now := testCache()

	require.NoError(t, c.Set("k", []byte("v"), 30*time.Second))

	*now = now.Add(31 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be purged on read")
}

// -----------------------------------------------------------------------------

func TestGetIntoRoundTrip(t *testing.T) {
	c, _ := testCache()

	type payload struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.NoError(t, c.Set("k", payload{Symbol: "BTC", Price: 45000}, time.Minute))

	var got payload
	require.True(t, c.GetInto("k", &got))
	assert.Equal(t, "BTC", got.Symbol)
	assert.Equal(t, 45000.0, got.Price)
}

// -----------------------------------------------------------------------------

func TestClearByPattern(t *testing.T) {
	c, _ := testCache()

	require.NoError(t, c.Set("prices:current:bitcoin", []byte("a"), time.Minute))
	require.NoError(t, c.Set("prices:history:bitcoin:7", []byte("b"), time.Minute))
	require.NoError(t, c.Set("sightings:current:hyde-park", []byte("c"), time.Minute))

	removed := c.ClearByPattern("prices:*")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("sightings:current:hyde-park")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

// -----------------------------------------------------------------------------

func TestDeleteAndClearAll(t *testing.T) {
	c, _ := testCache()

	require.NoError(t, c.Set("a", []byte("1"), time.Minute))
	require.NoError(t, c.Set("b", []byte("2"), time.Minute))

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.ClearAll()
	assert.Equal(t, 0, c.Len())
}

// -----------------------------------------------------------------------------

func TestSetOverwritesRefreshesTTL(t *testing.T) {
	c, now := testCache()

	require.NoError(t, c.Set("k", []byte("old"), 10*time.Second))

	*now = now.Add(8 * time.Second)
	require.NoError(t, c.Set("k", []byte("new"), 10*time.Second))

	*now = now.Add(5 * time.Second)
	raw, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", string(raw))
}
