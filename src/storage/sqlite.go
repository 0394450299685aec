package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------

// AsyncSQLiteDB archives fetched samples and derived correlations in an
// embedded database. The archive also backs the last-known-snapshot path
// that answers current-data queries when every upstream is down.
type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// The archive survives restarts, so tables are created, never dropped.
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	queries := []string{
		`CREATE TABLE IF NOT EXISTS price_points (
			coin_id TEXT,
			symbol TEXT,
			price REAL,
			market_cap REAL,
			volume_24h REAL,
			timestamp INTEGER,
			fetched_at INTEGER,
			PRIMARY KEY (coin_id, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS sightings (
			location TEXT,
			count INTEGER,
			timestamp INTEGER,
			lat REAL,
			lon REAL,
			fetched_at INTEGER,
			PRIMARY KEY (location, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS correlation_results (
			window_start INTEGER,
			window_end INTEGER,
			coefficient REAL,
			p_value REAL,
			significance TEXT,
			commentary TEXT,
			sample_count INTEGER,
			created_at INTEGER,
			PRIMARY KEY (window_start, window_end, created_at)
		);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SavePricePointsBulk(points []models.MPricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_points (coin_id, symbol, price, market_cap, volume_24h, timestamp, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (coin_id, timestamp) DO UPDATE SET
			price = excluded.price,
			market_cap = excluded.market_cap,
			volume_24h = excluded.volume_24h,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.ID, p.Symbol, p.Price, p.MarketCap, p.Volume24h, p.Timestamp, p.FetchedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSightingsBulk(sightings []models.MSighting) error {
	if len(sightings) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sightings (location, count, timestamp, lat, lon, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (location, timestamp) DO UPDATE SET
			count = excluded.count,
			lat = excluded.lat,
			lon = excluded.lon,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sightings {
		if _, err := stmt.Exec(s.Location, s.Count, s.Timestamp, s.Lat, s.Lon, s.FetchedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveCorrelations(results []models.MCorrelationResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO correlation_results
			(window_start, window_end, coefficient, p_value, significance, commentary, sample_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, r := range results {
		if _, err := stmt.Exec(r.WindowStart, r.WindowEnd, r.Coefficient, r.PValue, string(r.Significance), r.Commentary, r.SampleCount, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// LatestPrices returns the most recent archived point per requested id.
// Ids with no archived rows are simply absent from the result.
func (d *AsyncSQLiteDB) LatestPrices(ids []string) ([]models.MPricePoint, error) {
	points := make([]models.MPricePoint, 0, len(ids))

	for _, id := range ids {
		row := d.DB.QueryRow(`
			SELECT coin_id, symbol, price, market_cap, volume_24h, timestamp, fetched_at
			FROM price_points
			WHERE coin_id = ?
			ORDER BY timestamp DESC
			LIMIT 1
		`, id)

		var p models.MPricePoint
		err := row.Scan(&p.ID, &p.Symbol, &p.Price, &p.MarketCap, &p.Volume24h, &p.Timestamp, &p.FetchedAt)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, nil
}

// -----------------------------------------------------------------------------

// LatestSightings returns the most recent archived record per area.
func (d *AsyncSQLiteDB) LatestSightings(areas []string) ([]models.MSighting, error) {
	sightings := make([]models.MSighting, 0, len(areas))

	for _, area := range areas {
		row := d.DB.QueryRow(`
			SELECT location, count, timestamp, lat, lon, fetched_at
			FROM sightings
			WHERE location = ?
			ORDER BY timestamp DESC
			LIMIT 1
		`, area)

		var s models.MSighting
		err := row.Scan(&s.Location, &s.Count, &s.Timestamp, &s.Lat, &s.Lon, &s.FetchedAt)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		sightings = append(sightings, s)
	}

	return sightings, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM price_points WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup price_points error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM sightings WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup sightings error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM correlation_results WHERE window_end < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup correlation_results error: %v", err)
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
