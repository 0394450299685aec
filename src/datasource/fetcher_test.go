package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon-observer/src/cache"
	"pigeon-observer/src/helpers"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
	"pigeon-observer/src/network"
)

// -----------------------------------------------------------------------------
// test doubles
// -----------------------------------------------------------------------------

type stubLimiter struct {
	denied map[string]bool
}

func (l *stubLimiter) TryAcquire(sourceID string) (bool, time.Time) {
	if l.denied[sourceID] {
		return false, time.Now().Add(time.Minute)
	}
	return true, time.Now().Add(time.Minute)
}

func (l *stubLimiter) Reset() {}

// -----------------------------------------------------------------------------

func newTestConfig(geckoURL, cmcURL, sightingsURL string) *models.MConfig {
	return &models.MConfig{
		LogLevel: "error",
		Network: models.MNetworkConfig{
			RequestTimeout:    5,
			MaxRetries:        0,
			RequestsPerSecond: 1000,
			Burst:             1000,
			UserAgent:         "pigeon-observer-test",
		},
		Upstreams: models.MUpstreamsConfig{
			CoinGeckoURL:     geckoURL,
			CoinMarketCapURL: cmcURL,
			SightingsURL:     sightingsURL,
			Coins: []models.MCoinConfig{
				{ID: "bitcoin", Symbol: "BTC", CMCID: "1"},
			},
			Areas: []string{"hyde-park", "trafalgar-square"},
		},
		Cache: models.MCacheConfig{
			CurrentTTLSeconds:    30,
			HistoricalTTLSeconds: 300,
		},
	}
}

func newNetMgr(cfg *models.MConfig) *network.AsyncNetworkManager {
	return network.NewAsyncNetworkManager(cfg, logger.NewLogger("error", "test-network"))
}

func countingServer(hits *int, status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

const geckoCurrentBody = `{"bitcoin":{"usd":45000,"usd_market_cap":880000000000,"usd_24h_vol":21000000000,"last_updated_at":1700000000}}`

const cmcCurrentBody = `{"status":{"error_code":0},"data":{"1":{"id":1,"symbol":"BTC","quote":{"USD":{"price":45000,"volume_24h":21000000000,"market_cap":880000000000,"last_updated":"2023-11-14T22:13:20Z"}}}}}`

// -----------------------------------------------------------------------------

func TestPriceFailoverToSecondarySource(t *testing.T) {
	var geckoHits, cmcHits int
	gecko := countingServer(&geckoHits, http.StatusInternalServerError, "boom")
	defer gecko.Close()
	cmc := countingServer(&cmcHits, http.StatusOK, cmcCurrentBody)
	defer cmc.Close()

	cfg := newTestConfig(gecko.URL, cmc.URL, "")
	netMgr := newNetMgr(cfg)

	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, netMgr),
		NewCoinMarketCapSource(cfg, netMgr),
	)

	points, err := fetcher.FetchCurrent(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "BTC", points[0].Symbol)
	assert.Equal(t, 45000.0, points[0].Price)

	assert.Equal(t, 1, geckoHits, "primary should be tried exactly once")
	assert.Equal(t, 1, cmcHits, "secondary should be tried exactly once")
}

// -----------------------------------------------------------------------------

func TestCurrentPricesServedFromCache(t *testing.T) {
	var geckoHits int
	gecko := countingServer(&geckoHits, http.StatusOK, geckoCurrentBody)
	defer gecko.Close()

	cfg := newTestConfig(gecko.URL, "", "")
	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, newNetMgr(cfg)),
	)

	for i := 0; i < 3; i++ {
		points, err := fetcher.FetchCurrent(context.Background(), []string{"bitcoin"})
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, 45000.0, points[0].Price)
	}

	assert.Equal(t, 1, geckoHits, "repeat queries inside the TTL must not hit the upstream")
}

// -----------------------------------------------------------------------------

func TestAllPriceSourcesExhausted(t *testing.T) {
	var geckoHits, cmcHits int
	gecko := countingServer(&geckoHits, http.StatusInternalServerError, "boom")
	defer gecko.Close()
	cmc := countingServer(&cmcHits, http.StatusInternalServerError, "boom")
	defer cmc.Close()

	cfg := newTestConfig(gecko.URL, cmc.URL, "")
	netMgr := newNetMgr(cfg)

	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, netMgr),
		NewCoinMarketCapSource(cfg, netMgr),
	)

	_, err := fetcher.FetchCurrent(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	assert.True(t, helpers.IsAllSourcesExhausted(err))

	var exhausted *helpers.AllSourcesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 2)
}

// -----------------------------------------------------------------------------

func TestRateLimitedSourceIsSkipped(t *testing.T) {
	var geckoHits, cmcHits int
	gecko := countingServer(&geckoHits, http.StatusOK, geckoCurrentBody)
	defer gecko.Close()
	cmc := countingServer(&cmcHits, http.StatusOK, cmcCurrentBody)
	defer cmc.Close()

	cfg := newTestConfig(gecko.URL, cmc.URL, "")
	netMgr := newNetMgr(cfg)

	limiter := &stubLimiter{denied: map[string]bool{SourceCoinGecko: true}}
	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), limiter,
		NewCoinGeckoSource(cfg, netMgr),
		NewCoinMarketCapSource(cfg, netMgr),
	)

	points, err := fetcher.FetchCurrent(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.Equal(t, 0, geckoHits, "rate limited source must not be called")
	assert.Equal(t, 1, cmcHits)
}

// -----------------------------------------------------------------------------

func TestIncompleteBatchFailsOver(t *testing.T) {
	// Primary answers but omits the requested id; the fetcher must treat
	// the partial batch as a failure and move on.
	var geckoHits, cmcHits int
	gecko := countingServer(&geckoHits, http.StatusOK, `{"dogecoin":{"usd":0.1}}`)
	defer gecko.Close()
	cmc := countingServer(&cmcHits, http.StatusOK, cmcCurrentBody)
	defer cmc.Close()

	cfg := newTestConfig(gecko.URL, cmc.URL, "")
	netMgr := newNetMgr(cfg)

	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, netMgr),
		NewCoinMarketCapSource(cfg, netMgr),
	)

	points, err := fetcher.FetchCurrent(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 45000.0, points[0].Price)
	assert.Equal(t, 1, cmcHits)
}

// -----------------------------------------------------------------------------

func TestSightingFailoverToSynthetic(t *testing.T) {
	var apiHits int
	api := countingServer(&apiHits, http.StatusInternalServerError, "boom")
	defer api.Close()

	cfg := newTestConfig("", "", api.URL)
	fetcher := NewSightingFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewSightingAPISource(cfg, newNetMgr(cfg)),
		NewSyntheticSightingSource("error"),
	)

	areas := []string{"hyde-park", "trafalgar-square"}
	sightings, err := fetcher.FetchCurrent(context.Background(), areas)
	require.NoError(t, err)
	require.Len(t, sightings, 2)
	for i, s := range sightings {
		assert.Equal(t, areas[i], s.Location)
		assert.GreaterOrEqual(t, s.Count, 0)
	}
	assert.Equal(t, 1, apiHits)
}

// -----------------------------------------------------------------------------

func TestSyntheticCountsAreDeterministic(t *testing.T) {
	src := NewSyntheticSightingSource("error")
	fixed := time.Unix(1700000000, 0)
	src.now = func() time.Time { return fixed }

	a, err := src.FetchCurrent(context.Background(), []string{"hyde-park"})
	require.NoError(t, err)
	b, err := src.FetchCurrent(context.Background(), []string{"hyde-park"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

// -----------------------------------------------------------------------------

func TestHistoricalPricesDegradeToEmptySeries(t *testing.T) {
	var geckoHits int
	gecko := countingServer(&geckoHits, http.StatusInternalServerError, "boom")
	defer gecko.Close()

	cfg := newTestConfig(gecko.URL, "", "")
	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, newNetMgr(cfg)),
	)

	points, err := fetcher.FetchHistorical(context.Background(), "bitcoin", 7)
	require.NoError(t, err, "historical failures degrade instead of erroring")
	assert.Empty(t, points)
}

// -----------------------------------------------------------------------------

func TestHistoricalPricesParsedAndSorted(t *testing.T) {
	body := `{"prices":[[1700003600000,45100],[1700000000000,45000]],"market_caps":[[1700003600000,2],[1700000000000,1]],"total_volumes":[[1700003600000,4],[1700000000000,3]]}`
	var geckoHits int
	gecko := countingServer(&geckoHits, http.StatusOK, body)
	defer gecko.Close()

	cfg := newTestConfig(gecko.URL, "", "")
	fetcher := NewPriceFetcher(cfg, cache.NewTTLCache(), &stubLimiter{},
		NewCoinGeckoSource(cfg, newNetMgr(cfg)),
	)

	points, err := fetcher.FetchHistorical(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1700000000), points[0].Timestamp)
	assert.Equal(t, int64(1700003600), points[1].Timestamp)
	assert.Equal(t, 45000.0, points[0].Price)
}
