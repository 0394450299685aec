package interfaces

import (
	"context"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for pushing freshly fetched data to
// real-time subscribers. The hub decides per subscription whether the keys
// intersect its filters before serializing anything.
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------

	// BroadcastSightings fans new sighting records out to counts subscribers.
	BroadcastSightings(sightings []models.MSighting)

	// -----------------------------------------------------------------------------

	// BroadcastPrices fans new price points out to prices subscribers.
	BroadcastPrices(points []models.MPricePoint)

	// -----------------------------------------------------------------------------

	// BroadcastCorrelations fans new results out to correlations subscribers
	// whose filters intersect the given keys (symbols and locations).
	BroadcastCorrelations(keys []string, results []models.MCorrelationResult)

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// INetworkManager abstracts outbound HTTP so sources can be tested against
// httptest doubles.
// -----------------------------------------------------------------------------

type INetworkManager interface {
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)
}
