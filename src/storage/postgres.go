package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------

// AsyncPostgresDB is the archive backend for deployments where several
// observer instances share one database. Same contract as the embedded
// backend; only the driver and placeholder syntax differ.
type AsyncPostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncPostgresDB(cfg *models.MConfig, log *logger.Logger) (*AsyncPostgresDB, error) {
	return &AsyncPostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncPostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncPostgresDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS price_points (
			coin_id TEXT,
			symbol TEXT,
			price DOUBLE PRECISION,
			market_cap DOUBLE PRECISION,
			volume_24h DOUBLE PRECISION,
			timestamp BIGINT,
			fetched_at BIGINT,
			PRIMARY KEY (coin_id, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS sightings (
			location TEXT,
			count INTEGER,
			timestamp BIGINT,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			fetched_at BIGINT,
			PRIMARY KEY (location, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS correlation_results (
			window_start BIGINT,
			window_end BIGINT,
			coefficient DOUBLE PRECISION,
			p_value DOUBLE PRECISION,
			significance TEXT,
			commentary TEXT,
			sample_count INTEGER,
			created_at BIGINT,
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

func (d *AsyncPostgresDB) SavePricePointsBulk(points []models.MPricePoint) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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

func (d *AsyncPostgresDB) SaveSightingsBulk(sightings []models.MSighting) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)
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

func (d *AsyncPostgresDB) SaveCorrelations(results []models.MCorrelationResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO correlation_results
			(window_start, window_end, coefficient, p_value, significance, commentary, sample_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (window_start, window_end, created_at) DO NOTHING
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

func (d *AsyncPostgresDB) LatestPrices(ids []string) ([]models.MPricePoint, error) {
	points := make([]models.MPricePoint, 0, len(ids))

	for _, id := range ids {
		row := d.DB.QueryRow(`
			SELECT coin_id, symbol, price, market_cap, volume_24h, timestamp, fetched_at
			FROM price_points
			WHERE coin_id = $1
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

func (d *AsyncPostgresDB) LatestSightings(areas []string) ([]models.MSighting, error) {
	sightings := make([]models.MSighting, 0, len(areas))

	for _, area := range areas {
		row := d.DB.QueryRow(`
			SELECT location, count, timestamp, lat, lon, fetched_at
			FROM sightings
			WHERE location = $1
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

func (d *AsyncPostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	d.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM price_points WHERE timestamp < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup price_points error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM sightings WHERE timestamp < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup sightings error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM correlation_results WHERE window_end < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup correlation_results error: %v", err)
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncPostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
