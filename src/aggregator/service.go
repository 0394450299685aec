package aggregator

import (
	"context"
	"sync"
	"time"

	"pigeon-observer/src/admission"
	"pigeon-observer/src/analysis"
	"pigeon-observer/src/config"
	"pigeon-observer/src/helpers"
	"pigeon-observer/src/interfaces"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Aggregation service.
//
// Owns the fused query pipeline: admission, the two feed fetchers, temporal
// alignment, correlation and downsampling. Also runs the background refresh
// loop that keeps websocket subscribers and the archive current.
// -----------------------------------------------------------------------------

type Service struct {
	Config      *config.Config
	Logger      *logger.Logger
	Prices      interfaces.IPriceFetcher
	Sightings   interfaces.ISightingFetcher
	DB          interfaces.IDatabase
	Exchange    interfaces.IDataExchanger
	Admission   *admission.Controller
	Correlator  *analysis.Correlator
	Downsampler *analysis.Downsampler
}

// -----------------------------------------------------------------------------

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	prices interfaces.IPriceFetcher,
	sightings interfaces.ISightingFetcher,
	db interfaces.IDatabase,
	exchange interfaces.IDataExchanger,
	adm *admission.Controller,
) *Service {
	return &Service{
		Config:      cfg,
		Logger:      log,
		Prices:      prices,
		Sightings:   sightings,
		DB:          db,
		Exchange:    exchange,
		Admission:   adm,
		Correlator:  analysis.NewCorrelator(cfg.Correlation.Levels, log),
		Downsampler: analysis.NewDownsampler(cfg.Downsample, log),
	}
}

// -----------------------------------------------------------------------------
// Consumer API
// -----------------------------------------------------------------------------

// GetCurrentPrices returns the latest price per configured coin. When every
// upstream is down it degrades to the last archived snapshot; the error
// surfaces only if the archive is empty too.
func (s *Service) GetCurrentPrices(ctx context.Context) ([]models.MPricePoint, error) {
	ids := s.coinIDs()

	points, err := s.Prices.FetchCurrent(ctx, ids)
	if err != nil {
		archived, dbErr := s.DB.LatestPrices(ids)
		if dbErr == nil && len(archived) > 0 {
			s.Logger.Warning("All price sources down, serving last-known snapshot: %v", err)
			return archived, nil
		}
		return nil, err
	}

	s.archivePrices(points)
	return points, nil
}

// -----------------------------------------------------------------------------

// GetHistoricalPrices returns up to `days` days of prices for one coin.
func (s *Service) GetHistoricalPrices(ctx context.Context, id string, days int) ([]models.MPricePoint, error) {
	points, err := s.Prices.FetchHistorical(ctx, id, days)
	if err != nil {
		return nil, err
	}
	s.archivePrices(points)
	return points, nil
}

// -----------------------------------------------------------------------------

// GetCurrentSightings returns the latest count per configured area, with the
// same archive fallback as prices.
func (s *Service) GetCurrentSightings(ctx context.Context) ([]models.MSighting, error) {
	areas := s.Config.Upstreams.Areas

	sightings, err := s.Sightings.FetchCurrent(ctx, areas)
	if err != nil {
		archived, dbErr := s.DB.LatestSightings(areas)
		if dbErr == nil && len(archived) > 0 {
			s.Logger.Warning("All sighting sources down, serving last-known snapshot: %v", err)
			return archived, nil
		}
		return nil, err
	}

	s.archiveSightings(sightings)
	return sightings, nil
}

// -----------------------------------------------------------------------------

// GetHistoricalSightings returns up to `days` days of counts for one area.
func (s *Service) GetHistoricalSightings(ctx context.Context, area string, days int) ([]models.MSighting, error) {
	sightings, err := s.Sightings.FetchHistorical(ctx, area, days)
	if err != nil {
		return nil, err
	}
	s.archiveSightings(sightings)
	return sightings, nil
}

// -----------------------------------------------------------------------------

// AggregateAndCorrelate runs the full fused pipeline for one request: admit,
// fetch both feeds in parallel, downsample, align, correlate, then persist
// and broadcast the results. Either the whole response comes back or a
// single error does; there are no partial responses.
func (s *Service) AggregateAndCorrelate(ctx context.Context, userID string, req models.MAggregationRequest) (*models.MAggregationResponse, error) {
	if err := s.Admission.Admit(userID); err != nil {
		return nil, err
	}
	defer s.Admission.Release(userID)

	areas, coins, days, bucketSeconds, tolerance := s.resolveRequest(&req)

	// Both feeds are fetched concurrently and both are awaited; a broken
	// feed contributes an empty series rather than aborting the other
	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		pigeonSamples []models.MTimedSample
		cryptoSamples []models.MTimedSample
	)

	for _, area := range areas {
		wg.Add(1)
		go func(area string) {
			defer wg.Done()
			sightings, err := s.Sightings.FetchHistorical(ctx, area, days)
			if err != nil {
				s.Logger.Warning("Historical counts for %s failed: %v", area, err)
				return
			}
			mu.Lock()
			pigeonSamples = append(pigeonSamples, models.SightingsToSamples(sightings)...)
			mu.Unlock()
		}(area)
	}

	for _, coin := range coins {
		wg.Add(1)
		go func(coin string) {
			defer wg.Done()
			points, err := s.Prices.FetchHistorical(ctx, coin, days)
			if err != nil {
				s.Logger.Warning("Historical prices for %s failed: %v", coin, err)
				return
			}
			mu.Lock()
			cryptoSamples = append(cryptoSamples, models.PricesToSamples(points)...)
			mu.Unlock()
		}(coin)
	}

	wg.Wait()

	models.SortSamples(pigeonSamples)
	models.SortSamples(cryptoSamples)

	pigeonSamples, pigeonReduced := s.Downsampler.Reduce(pigeonSamples)
	cryptoSamples, cryptoReduced := s.Downsampler.Reduce(cryptoSamples)

	aligner := analysis.NewTemporalAligner(bucketSeconds, tolerance)
	buckets := aligner.Align(pigeonSamples, cryptoSamples)

	windows := req.Windows
	if len(windows) == 0 {
		now := time.Now().Unix()
		windows = []models.MTimeRange{{Start: now - int64(days)*86400, End: now}}
	}

	correlations := s.Correlator.Correlate(buckets, windows)

	// Persistence and broadcast are best effort; the response stands alone
	if err := s.DB.SaveCorrelations(correlations); err != nil {
		s.Logger.Warning("Failed to archive correlations: %v", err)
	}
	if len(correlations) > 0 && s.Exchange != nil {
		s.Exchange.BroadcastCorrelations(s.correlationKeys(areas, coins), correlations)
	}

	return &models.MAggregationResponse{
		PigeonData:   pigeonSamples,
		CryptoData:   cryptoSamples,
		Correlations: correlations,
		Metadata: models.MAggregationMetadata{
			BucketSeconds:          bucketSeconds,
			ToleranceSeconds:       tolerance,
			PairedBuckets:          len(buckets),
			InsufficientPairedData: len(buckets) < 2,
			PigeonDownsampled:      pigeonReduced,
			CryptoDownsampled:      cryptoReduced,
			GeneratedAt:            time.Now().Unix(),
		},
	}, nil
}

// -----------------------------------------------------------------------------
// Background refresh loop
// -----------------------------------------------------------------------------

// Start launches the periodic refresher that polls both feeds, archives the
// results and pushes deltas to websocket subscribers.
func (s *Service) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go s.runLoop(ctx, wg)
	s.Logger.Info("Started aggregation refresher (every %ds)", s.Config.Upstreams.RefreshSeconds)
}

// -----------------------------------------------------------------------------

func (s *Service) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Duration(s.Config.Upstreams.RefreshSeconds) * time.Second)
	defer ticker.Stop()

	cleanup := time.NewTicker(6 * time.Hour)
	defer cleanup.Stop()

	// When both feeds go dark, back off instead of hammering them every tick
	backoff := helpers.NewBackoff(time.Second, time.Minute, 0)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("Aggregation refresher stopping")
			return

		case <-ticker.C:
			if s.refreshOnce(ctx) {
				backoff.Reset()
				continue
			}

			delay, _ := backoff.Next()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}

		case <-cleanup.C:
			if err := s.DB.CleanupOldData(); err != nil {
				s.Logger.Error("Retention cleanup failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// refreshOnce polls both feeds and reports whether at least one delivered.
func (s *Service) refreshOnce(ctx context.Context) bool {
	refreshed := false

	if points, err := s.Prices.FetchCurrent(ctx, s.coinIDs()); err != nil {
		s.Logger.Warning("Refresh: price fetch failed: %v", err)
	} else {
		refreshed = true
		s.archivePrices(points)
		if s.Exchange != nil {
			s.Exchange.BroadcastPrices(points)
		}
	}

	if sightings, err := s.Sightings.FetchCurrent(ctx, s.Config.Upstreams.Areas); err != nil {
		s.Logger.Warning("Refresh: sighting fetch failed: %v", err)
	} else {
		refreshed = true
		s.archiveSightings(sightings)
		if s.Exchange != nil {
			s.Exchange.BroadcastSightings(sightings)
		}
	}

	return refreshed
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// resolveRequest fills request gaps from configuration.
func (s *Service) resolveRequest(req *models.MAggregationRequest) (areas, coins []string, days int, bucketSeconds, tolerance int64) {
	areas = req.Areas
	if len(areas) == 0 {
		areas = s.Config.Upstreams.Areas
	}

	coins = req.Coins
	if len(coins) == 0 {
		coins = s.coinIDs()
	}

	days = req.Days
	if days <= 0 {
		days = 7
	}

	bucketSeconds = req.BucketSeconds
	if bucketSeconds <= 0 {
		if d, err := s.Config.BucketDuration(""); err == nil {
			bucketSeconds = int64(d / time.Second)
		} else {
			bucketSeconds = 3600
		}
	}

	tolerance = req.ToleranceSeconds
	if tolerance <= 0 {
		tolerance = s.Config.Correlation.ToleranceSeconds
	}
	if tolerance <= 0 {
		tolerance = bucketSeconds
	}

	return areas, coins, days, bucketSeconds, tolerance
}

// -----------------------------------------------------------------------------

func (s *Service) coinIDs() []string {
	ids := make([]string, 0, len(s.Config.Upstreams.Coins))
	for _, c := range s.Config.Upstreams.Coins {
		ids = append(ids, c.ID)
	}
	return ids
}

// -----------------------------------------------------------------------------

func (s *Service) correlationKeys(areas, coins []string) []string {
	keys := make([]string, 0, len(areas)+len(coins))
	keys = append(keys, areas...)
	for _, id := range coins {
		for _, c := range s.Config.Upstreams.Coins {
			if c.ID == id {
				keys = append(keys, c.Symbol)
			}
		}
	}
	return keys
}

// -----------------------------------------------------------------------------

func (s *Service) archivePrices(points []models.MPricePoint) {
	if err := s.DB.SavePricePointsBulk(points); err != nil {
		s.Logger.Warning("Failed to archive %d price points: %v", len(points), err)
	}
}

// -----------------------------------------------------------------------------

func (s *Service) archiveSightings(sightings []models.MSighting) {
	if err := s.DB.SaveSightingsBulk(sightings); err != nil {
		s.Logger.Warning("Failed to archive %d sightings: %v", len(sightings), err)
	}
}
