package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon-observer/src/admission"
	"pigeon-observer/src/config"
	"pigeon-observer/src/helpers"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// test doubles
// -----------------------------------------------------------------------------

type stubPriceFetcher struct {
	current       []models.MPricePoint
	currentErr    error
	historical    []models.MPricePoint
	historicalErr error
}

func (f *stubPriceFetcher) FetchCurrent(_ context.Context, _ []string) ([]models.MPricePoint, error) {
	return f.current, f.currentErr
}

func (f *stubPriceFetcher) FetchHistorical(_ context.Context, _ string, _ int) ([]models.MPricePoint, error) {
	return f.historical, f.historicalErr
}

type stubSightingFetcher struct {
	current       []models.MSighting
	currentErr    error
	historical    []models.MSighting
	historicalErr error
}

func (f *stubSightingFetcher) FetchCurrent(_ context.Context, _ []string) ([]models.MSighting, error) {
	return f.current, f.currentErr
}

func (f *stubSightingFetcher) FetchHistorical(_ context.Context, _ string, _ int) ([]models.MSighting, error) {
	return f.historical, f.historicalErr
}

type stubDB struct {
	latestPrices       []models.MPricePoint
	latestSightings    []models.MSighting
	savedPricePoints   int
	savedSightings     int
	savedCorrelations  []models.MCorrelationResult
}

func (d *stubDB) Initialize() error { return nil }
func (d *stubDB) SavePricePointsBulk(points []models.MPricePoint) error {
	d.savedPricePoints += len(points)
	return nil
}
func (d *stubDB) SaveSightingsBulk(sightings []models.MSighting) error {
	d.savedSightings += len(sightings)
	return nil
}
func (d *stubDB) SaveCorrelations(results []models.MCorrelationResult) error {
	d.savedCorrelations = append(d.savedCorrelations, results...)
	return nil
}
func (d *stubDB) LatestPrices(_ []string) ([]models.MPricePoint, error) {
	return d.latestPrices, nil
}
func (d *stubDB) LatestSightings(_ []string) ([]models.MSighting, error) {
	return d.latestSightings, nil
}
func (d *stubDB) CleanupOldData() error { return nil }
func (d *stubDB) Close() error          { return nil }

type stubExchange struct {
	prices       int
	sightings    int
	correlations []models.MCorrelationResult
	keys         []string
}

func (e *stubExchange) BroadcastSightings(_ []models.MSighting) { e.sightings++ }
func (e *stubExchange) BroadcastPrices(_ []models.MPricePoint)  { e.prices++ }
func (e *stubExchange) BroadcastCorrelations(keys []string, results []models.MCorrelationResult) {
	e.keys = keys
	e.correlations = append(e.correlations, results...)
}
func (e *stubExchange) Start() error { return nil }
func (e *stubExchange) Stop() error  { return nil }

// -----------------------------------------------------------------------------

func testConfig() *config.Config {
	return &config.Config{MConfig: &models.MConfig{
		LogLevel: "error",
		Upstreams: models.MUpstreamsConfig{
			Coins: []models.MCoinConfig{{ID: "bitcoin", Symbol: "BTC", CMCID: "1"}},
			Areas: []string{"hyde-park"},
		},
		Correlation: models.MCorrelationConfig{
			DefaultBucket: "hour",
			Levels:        models.DefaultSignificanceLevels(),
		},
		Downsample: models.MDownsampleConfig{
			Threshold:    500,
			TargetPoints: 200,
			Strategy:     "adaptive",
		},
		Admission: models.MAdmissionConfig{MaxConcurrent: 2},
	}}
}

func newTestService(prices *stubPriceFetcher, sightings *stubSightingFetcher, db *stubDB, exchange *stubExchange) *Service {
	cfg := testConfig()
	log := logger.NewLogger("error", "test-aggregator")
	adm := admission.NewController(cfg.Admission.MaxConcurrent, log)
	return NewService(cfg, log, prices, sightings, db, exchange, adm)
}

// correlatedFeeds builds an hourly history where counts and prices move in
// lockstep, so the correlation over the window is exactly 1.
func correlatedFeeds(hours int) (*stubSightingFetcher, *stubPriceFetcher) {
	now := time.Now().Unix()
	start := now - int64(hours)*3600

	sightings := make([]models.MSighting, 0, hours)
	points := make([]models.MPricePoint, 0, hours)
	for i := 0; i < hours; i++ {
		ts := start + int64(i)*3600
		sightings = append(sightings, models.MSighting{Location: "hyde-park", Count: 10 + i, Timestamp: ts})
		points = append(points, models.MPricePoint{ID: "bitcoin", Symbol: "BTC", Price: float64(40000 + 100*i), Timestamp: ts})
	}
	return &stubSightingFetcher{historical: sightings}, &stubPriceFetcher{historical: points}
}

// -----------------------------------------------------------------------------

func TestGetCurrentPricesFallsBackToArchive(t *testing.T) {
	prices := &stubPriceFetcher{currentErr: &helpers.AllSourcesExhaustedError{}}
	db := &stubDB{latestPrices: []models.MPricePoint{{ID: "bitcoin", Symbol: "BTC", Price: 44000}}}
	svc := newTestService(prices, &stubSightingFetcher{}, db, &stubExchange{})

	points, err := svc.GetCurrentPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 44000.0, points[0].Price)
}

// -----------------------------------------------------------------------------

func TestGetCurrentPricesErrorsWhenArchiveEmpty(t *testing.T) {
	prices := &stubPriceFetcher{currentErr: &helpers.AllSourcesExhaustedError{}}
	svc := newTestService(prices, &stubSightingFetcher{}, &stubDB{}, &stubExchange{})

	_, err := svc.GetCurrentPrices(context.Background())
	require.Error(t, err)
	assert.True(t, helpers.IsAllSourcesExhausted(err))
}

// -----------------------------------------------------------------------------

func TestGetCurrentSightingsArchivesOnSuccess(t *testing.T) {
	sightings := &stubSightingFetcher{current: []models.MSighting{{Location: "hyde-park", Count: 12}}}
	db := &stubDB{}
	svc := newTestService(&stubPriceFetcher{}, sightings, db, &stubExchange{})

	got, err := svc.GetCurrentSightings(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, db.savedSightings)
}

// -----------------------------------------------------------------------------

func TestAggregateAndCorrelateFullPipeline(t *testing.T) {
	sightings, prices := correlatedFeeds(24)
	db := &stubDB{}
	exchange := &stubExchange{}
	svc := newTestService(prices, sightings, db, exchange)

	resp, err := svc.AggregateAndCorrelate(context.Background(), "alice", models.MAggregationRequest{Days: 2})
	require.NoError(t, err)

	assert.Len(t, resp.PigeonData, 24)
	assert.Len(t, resp.CryptoData, 24)
	assert.Equal(t, 24, resp.Metadata.PairedBuckets)
	assert.False(t, resp.Metadata.InsufficientPairedData)
	assert.False(t, resp.Metadata.PigeonDownsampled)

	require.Len(t, resp.Correlations, 1)
	result := resp.Correlations[0]
	assert.InDelta(t, 1.0, result.Coefficient, 1e-9)
	assert.Equal(t, models.SignificanceHigh, result.Significance)
	assert.Equal(t, 24, result.SampleCount)

	// Results were archived and pushed to subscribers
	assert.Len(t, db.savedCorrelations, 1)
	assert.Len(t, exchange.correlations, 1)
	assert.Contains(t, exchange.keys, "hyde-park")
	assert.Contains(t, exchange.keys, "BTC")
}

// -----------------------------------------------------------------------------

func TestAggregateFlagsInsufficientPairedData(t *testing.T) {
	sightings, prices := correlatedFeeds(1)
	svc := newTestService(prices, sightings, &stubDB{}, &stubExchange{})

	resp, err := svc.AggregateAndCorrelate(context.Background(), "alice", models.MAggregationRequest{})
	require.NoError(t, err, "thin data degrades, it does not error")
	assert.True(t, resp.Metadata.InsufficientPairedData)
	assert.Empty(t, resp.Correlations)
}

// -----------------------------------------------------------------------------

func TestAggregateDegradesWhenOneFeedIsDown(t *testing.T) {
	sightings, _ := correlatedFeeds(24)
	prices := &stubPriceFetcher{historicalErr: errors.New("upstream down")}
	svc := newTestService(prices, sightings, &stubDB{}, &stubExchange{})

	resp, err := svc.AggregateAndCorrelate(context.Background(), "alice", models.MAggregationRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.PigeonData)
	assert.Empty(t, resp.CryptoData)
	assert.True(t, resp.Metadata.InsufficientPairedData)
}

// -----------------------------------------------------------------------------

func TestAggregateRespectsAdmissionLimit(t *testing.T) {
	sightings, prices := correlatedFeeds(24)
	svc := newTestService(prices, sightings, &stubDB{}, &stubExchange{})

	// Fill both slots by hand, then a third user is turned away
	require.NoError(t, svc.Admission.Admit("alice"))
	require.NoError(t, svc.Admission.Admit("bob"))

	_, err := svc.AggregateAndCorrelate(context.Background(), "carol", models.MAggregationRequest{})
	require.Error(t, err)
	assert.True(t, helpers.IsAdmissionRejected(err))

	// A user already holding a slot still gets through
	_, err = svc.AggregateAndCorrelate(context.Background(), "alice", models.MAggregationRequest{})
	assert.NoError(t, err)
}

// -----------------------------------------------------------------------------

func TestAggregateDownsamplesLongSeries(t *testing.T) {
	sightings, prices := correlatedFeeds(24)
	svc := newTestService(prices, sightings, &stubDB{}, &stubExchange{})
	svc.Downsampler.Threshold = 10
	svc.Downsampler.TargetPoints = 8

	resp, err := svc.AggregateAndCorrelate(context.Background(), "alice", models.MAggregationRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Metadata.PigeonDownsampled)
	assert.True(t, resp.Metadata.CryptoDownsampled)
	assert.LessOrEqual(t, len(resp.PigeonData), 9)
	assert.LessOrEqual(t, len(resp.CryptoData), 9)
}

// -----------------------------------------------------------------------------

func TestRefreshOnceArchivesAndBroadcasts(t *testing.T) {
	prices := &stubPriceFetcher{current: []models.MPricePoint{{ID: "bitcoin", Symbol: "BTC", Price: 45000}}}
	sightings := &stubSightingFetcher{current: []models.MSighting{{Location: "hyde-park", Count: 12}}}
	db := &stubDB{}
	exchange := &stubExchange{}
	svc := newTestService(prices, sightings, db, exchange)

	svc.refreshOnce(context.Background())

	assert.Equal(t, 1, db.savedPricePoints)
	assert.Equal(t, 1, db.savedSightings)
	assert.Equal(t, 1, exchange.prices)
	assert.Equal(t, 1, exchange.sightings)
}
