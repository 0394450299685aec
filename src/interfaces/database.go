package interfaces

import "pigeon-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the archive storage layer. The archive
// keeps normalized samples and derived correlation results under a retention
// policy, and serves last-known snapshots when every upstream is down.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SavePricePointsBulk inserts a batch of normalized price points.
	SavePricePointsBulk(points []models.MPricePoint) error

	// -----------------------------------------------------------------------------

	// SaveSightingsBulk inserts a batch of normalized sighting records.
	SaveSightingsBulk(sightings []models.MSighting) error

	// -----------------------------------------------------------------------------

	// SaveCorrelations records derived correlation results.
	SaveCorrelations(results []models.MCorrelationResult) error

	// -----------------------------------------------------------------------------

	// LatestPrices returns the most recent archived point per requested id.
	LatestPrices(ids []string) ([]models.MPricePoint, error)

	// -----------------------------------------------------------------------------

	// LatestSightings returns the most recent archived record per area.
	LatestSightings(areas []string) ([]models.MSighting, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
