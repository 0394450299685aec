package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pigeon-observer/src/helpers"
	"pigeon-observer/src/interfaces"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Failover fetchers.
//
// Each fetcher walks its source chain in priority order. Per source the
// sequence is: rate-limit check, fetch, completeness check. Any failure is
// recorded and the next source is tried; only when the whole chain fails
// does the caller see an error. Successful responses land in the cache so
// repeat queries inside the TTL never touch an upstream.
// -----------------------------------------------------------------------------

// PriceFetcher resolves crypto price queries through the source chain.
type PriceFetcher struct {
	Cache   interfaces.ICache
	Limiter interfaces.IRateLimiter
	Sources []interfaces.IPriceSource
	Logger  *logger.Logger

	currentTTL    time.Duration
	historicalTTL time.Duration
}

// -----------------------------------------------------------------------------

func NewPriceFetcher(cfg *models.MConfig, cache interfaces.ICache, limiter interfaces.IRateLimiter, sources ...interfaces.IPriceSource) *PriceFetcher {
	return &PriceFetcher{
		Cache:         cache,
		Limiter:       limiter,
		Sources:       sources,
		Logger:        logger.NewLogger(cfg.LogLevel, "PriceFetcher"),
		currentTTL:    time.Duration(cfg.Cache.CurrentTTLSeconds) * time.Second,
		historicalTTL: time.Duration(cfg.Cache.HistoricalTTLSeconds) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// FetchCurrent returns the latest price per id, served from cache when fresh.
func (f *PriceFetcher) FetchCurrent(ctx context.Context, ids []string) ([]models.MPricePoint, error) {
	cacheKey := "prices:current:" + joinSorted(ids)

	var cached []models.MPricePoint
	if f.Cache.GetInto(cacheKey, &cached) {
		return cached, nil
	}

	var attempts []helpers.SourceAttempt
	for _, src := range f.Sources {
		if allowed, resetAt := f.Limiter.TryAcquire(src.Name()); !allowed {
			f.Logger.Info("Source %s rate limited, trying next", src.Name())
			attempts = append(attempts, helpers.SourceAttempt{
				SourceID: src.Name(),
				Err:      &helpers.RateLimitedError{SourceID: src.Name(), ResetAt: resetAt},
			})
			continue
		}

		points, err := src.FetchCurrent(ctx, ids)
		if err != nil {
			f.Logger.Warning("Source %s failed: %v", src.Name(), err)
			attempts = append(attempts, helpers.SourceAttempt{SourceID: src.Name(), Err: err})
			continue
		}

		if err := f.Cache.Set(cacheKey, points, f.currentTTL); err != nil {
			f.Logger.Warning("Cache write failed for %s: %v", cacheKey, err)
		}
		return points, nil
	}

	return nil, &helpers.AllSourcesExhaustedError{Attempts: attempts}
}

// -----------------------------------------------------------------------------

// FetchHistorical returns up to `days` days of prices for one id. When every
// source fails the result degrades to an empty series rather than an error,
// so one broken feed cannot sink a whole aggregation.
func (f *PriceFetcher) FetchHistorical(ctx context.Context, id string, days int) ([]models.MPricePoint, error) {
	cacheKey := fmt.Sprintf("prices:history:%s:%d", id, days)

	var cached []models.MPricePoint
	if f.Cache.GetInto(cacheKey, &cached) {
		return cached, nil
	}

	for _, src := range f.Sources {
		if allowed, _ := f.Limiter.TryAcquire(src.Name()); !allowed {
			f.Logger.Info("Source %s rate limited, trying next", src.Name())
			continue
		}

		points, err := src.FetchHistorical(ctx, id, days)
		if err != nil {
			f.Logger.Warning("Source %s failed for %s: %v", src.Name(), id, err)
			continue
		}

		models.SortPricePoints(points)
		if err := f.Cache.Set(cacheKey, points, f.historicalTTL); err != nil {
			f.Logger.Warning("Cache write failed for %s: %v", cacheKey, err)
		}
		return points, nil
	}

	f.Logger.Warning("No historical prices for %s, degrading to empty series", id)
	return []models.MPricePoint{}, nil
}

// -----------------------------------------------------------------------------

// SightingFetcher resolves pigeon-count queries through the source chain.
type SightingFetcher struct {
	Cache   interfaces.ICache
	Limiter interfaces.IRateLimiter
	Sources []interfaces.ISightingSource
	Logger  *logger.Logger

	currentTTL    time.Duration
	historicalTTL time.Duration
}

// -----------------------------------------------------------------------------

func NewSightingFetcher(cfg *models.MConfig, cache interfaces.ICache, limiter interfaces.IRateLimiter, sources ...interfaces.ISightingSource) *SightingFetcher {
	return &SightingFetcher{
		Cache:         cache,
		Limiter:       limiter,
		Sources:       sources,
		Logger:        logger.NewLogger(cfg.LogLevel, "SightingFetcher"),
		currentTTL:    time.Duration(cfg.Cache.CurrentTTLSeconds) * time.Second,
		historicalTTL: time.Duration(cfg.Cache.HistoricalTTLSeconds) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// FetchCurrent returns the latest count per area, served from cache when fresh.
func (f *SightingFetcher) FetchCurrent(ctx context.Context, areas []string) ([]models.MSighting, error) {
	cacheKey := "sightings:current:" + joinSorted(areas)

	var cached []models.MSighting
	if f.Cache.GetInto(cacheKey, &cached) {
		return cached, nil
	}

	var attempts []helpers.SourceAttempt
	for _, src := range f.Sources {
		if allowed, resetAt := f.Limiter.TryAcquire(src.Name()); !allowed {
			f.Logger.Info("Source %s rate limited, trying next", src.Name())
			attempts = append(attempts, helpers.SourceAttempt{
				SourceID: src.Name(),
				Err:      &helpers.RateLimitedError{SourceID: src.Name(), ResetAt: resetAt},
			})
			continue
		}

		sightings, err := src.FetchCurrent(ctx, areas)
		if err != nil {
			f.Logger.Warning("Source %s failed: %v", src.Name(), err)
			attempts = append(attempts, helpers.SourceAttempt{SourceID: src.Name(), Err: err})
			continue
		}

		if err := f.Cache.Set(cacheKey, sightings, f.currentTTL); err != nil {
			f.Logger.Warning("Cache write failed for %s: %v", cacheKey, err)
		}
		return sightings, nil
	}

	return nil, &helpers.AllSourcesExhaustedError{Attempts: attempts}
}

// -----------------------------------------------------------------------------

// FetchHistorical returns up to `days` days of counts for one area, degrading
// to an empty series when the whole chain fails.
func (f *SightingFetcher) FetchHistorical(ctx context.Context, area string, days int) ([]models.MSighting, error) {
	cacheKey := fmt.Sprintf("sightings:history:%s:%d", area, days)

	var cached []models.MSighting
	if f.Cache.GetInto(cacheKey, &cached) {
		return cached, nil
	}

	for _, src := range f.Sources {
		if allowed, _ := f.Limiter.TryAcquire(src.Name()); !allowed {
			f.Logger.Info("Source %s rate limited, trying next", src.Name())
			continue
		}

		sightings, err := src.FetchHistorical(ctx, area, days)
		if err != nil {
			f.Logger.Warning("Source %s failed for %s: %v", src.Name(), area, err)
			continue
		}

		models.SortSightings(sightings)
		if err := f.Cache.Set(cacheKey, sightings, f.historicalTTL); err != nil {
			f.Logger.Warning("Cache write failed for %s: %v", cacheKey, err)
		}
		return sightings, nil
	}

	f.Logger.Warning("No historical counts for %s, degrading to empty series", area)
	return []models.MSighting{}, nil
}

// -----------------------------------------------------------------------------

func joinSorted(keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
