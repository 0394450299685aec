package interfaces

import (
	"context"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Upstream source contracts. Each fetcher owns an ordered chain of these
// (primary first) and walks it until one succeeds.
// -----------------------------------------------------------------------------

type IPriceSource interface {

	// Name returns the unique identifier of the source (used for rate windows)
	Name() string

	// -----------------------------------------------------------------------------

	// FetchCurrent returns exactly one point per requested id. A response
	// missing any requested id must fail the whole call.
	FetchCurrent(ctx context.Context, ids []string) ([]models.MPricePoint, error)

	// -----------------------------------------------------------------------------

	// FetchHistorical returns the price series for one coin over the span.
	FetchHistorical(ctx context.Context, id string, days int) ([]models.MPricePoint, error)
}

// -----------------------------------------------------------------------------

// IPriceFetcher is the chain-walking facade over the price sources.
type IPriceFetcher interface {
	FetchCurrent(ctx context.Context, ids []string) ([]models.MPricePoint, error)
	FetchHistorical(ctx context.Context, id string, days int) ([]models.MPricePoint, error)
}

// -----------------------------------------------------------------------------

type ISightingSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchCurrent returns the latest sighting per requested area.
	FetchCurrent(ctx context.Context, areas []string) ([]models.MSighting, error)

	// -----------------------------------------------------------------------------

	// FetchHistorical returns sighting records for one area over the span.
	FetchHistorical(ctx context.Context, area string, days int) ([]models.MSighting, error)
}

// -----------------------------------------------------------------------------

// ISightingFetcher is the chain-walking facade over the sighting sources.
type ISightingFetcher interface {
	FetchCurrent(ctx context.Context, areas []string) ([]models.MSighting, error)
	FetchHistorical(ctx context.Context, area string, days int) ([]models.MSighting, error)
}
