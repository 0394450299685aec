package interfaces

import (
	"context"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// IAggregator is the consumer-facing query surface: current and historical
// views of both feeds, plus the fused aggregation entry point.
// -----------------------------------------------------------------------------

type IAggregator interface {

	// -----------------------------------------------------------------------------

	// GetCurrentPrices returns the latest price per configured coin.
	GetCurrentPrices(ctx context.Context) ([]models.MPricePoint, error)

	// -----------------------------------------------------------------------------

	// GetHistoricalPrices returns up to `days` days of prices for one coin.
	GetHistoricalPrices(ctx context.Context, id string, days int) ([]models.MPricePoint, error)

	// -----------------------------------------------------------------------------

	// GetCurrentSightings returns the latest count per configured area.
	GetCurrentSightings(ctx context.Context) ([]models.MSighting, error)

	// -----------------------------------------------------------------------------

	// GetHistoricalSightings returns up to `days` days of counts for one area.
	GetHistoricalSightings(ctx context.Context, area string, days int) ([]models.MSighting, error)

	// -----------------------------------------------------------------------------

	// AggregateAndCorrelate runs the full fused pipeline for one request.
	AggregateAndCorrelate(ctx context.Context, userID string, req models.MAggregationRequest) (*models.MAggregationResponse, error)
}
