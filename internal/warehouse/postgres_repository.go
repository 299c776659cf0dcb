package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the prediction tables.
const Schema = `
CREATE TABLE IF NOT EXISTS crop_predictions (
	id          UUID PRIMARY KEY,
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	crop        TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	n           DOUBLE PRECISION NOT NULL,
	p           DOUBLE PRECISION NOT NULL,
	k           DOUBLE PRECISION NOT NULL,
	ph          DOUBLE PRECISION NOT NULL,
	rainfall    DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	humidity    DOUBLE PRECISION NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	pests       JSONB NOT NULL DEFAULT '[]',
	diseases    JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS solar_predictions (
	id                 UUID PRIMARY KEY,
	lat                DOUBLE PRECISION NOT NULL,
	lon                DOUBLE PRECISION NOT NULL,
	observed_at        TIMESTAMPTZ NOT NULL,
	features           JSONB NOT NULL,
	predicted_power_kw DOUBLE PRECISION NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS wind_predictions (
	id              UUID PRIMARY KEY,
	lat             DOUBLE PRECISION NOT NULL,
	lon             DOUBLE PRECISION NOT NULL,
	observed_at     TIMESTAMPTZ NOT NULL,
	features        JSONB NOT NULL,
	predicted_power DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS aqi_predictions (
	id                  UUID PRIMARY KEY,
	lat                 DOUBLE PRECISION NOT NULL,
	lon                 DOUBLE PRECISION NOT NULL,
	humidity            DOUBLE PRECISION NOT NULL,
	wind_speed          DOUBLE PRECISION NOT NULL,
	wind_direction      DOUBLE PRECISION NOT NULL,
	dew_point           DOUBLE PRECISION NOT NULL,
	temperature         DOUBLE PRECISION NOT NULL,
	clouds_all          DOUBLE PRECISION NOT NULL,
	visibility_in_miles DOUBLE PRECISION NOT NULL,
	rain_p_h            DOUBLE PRECISION NOT NULL,
	snow_p_h            DOUBLE PRECISION NOT NULL,
	traffic_volume      DOUBLE PRECISION NOT NULL,
	aqi                 DOUBLE PRECISION NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS crop_predictions_created_at_idx ON crop_predictions (created_at DESC);
CREATE INDEX IF NOT EXISTS solar_predictions_created_at_idx ON solar_predictions (created_at DESC);
CREATE INDEX IF NOT EXISTS wind_predictions_created_at_idx ON wind_predictions (created_at DESC);
CREATE INDEX IF NOT EXISTS aqi_predictions_created_at_idx ON aqi_predictions (created_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL warehouse repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the prediction tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating warehouse schema: %w", err)
	}
	return nil
}

// InsertCrops stores crop records in one transaction.
func (r *PostgresRepository) InsertCrops(ctx context.Context, records []CropRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO crop_predictions (
			id, lat, lon, crop, confidence,
			n, p, k, ph,
			rainfall, temperature, humidity, price,
			pests, diseases, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	batch := &pgx.Batch{}
	for i := range records {
		rec := &records[i]

		pests, err := json.Marshal(nonNil(rec.Pests))
		if err != nil {
			return fmt.Errorf("encoding pests: %w", err)
		}
		diseases, err := json.Marshal(nonNil(rec.Diseases))
		if err != nil {
			return fmt.Errorf("encoding diseases: %w", err)
		}

		batch.Queue(query,
			rec.ID, rec.Lat, rec.Lon, rec.Crop, rec.Confidence,
			rec.N, rec.P, rec.K, rec.PH,
			rec.Rainfall, rec.Temperature, rec.Humidity, rec.Price,
			pests, diseases, rec.CreatedAt,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting crop predictions: %w", err)
	}

	return tx.Commit(ctx)
}

const (
	insertSolarQuery = `
		INSERT INTO solar_predictions (id, lat, lon, observed_at, features, predicted_power_kw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	insertWindQuery = `
		INSERT INTO wind_predictions (id, lat, lon, observed_at, features, predicted_power, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertSolar stores a solar record.
func (r *PostgresRepository) InsertSolar(ctx context.Context, rec *SolarRecord) error {
	return insertSolar(ctx, r.pool, rec)
}

// InsertWind stores a wind record.
func (r *PostgresRepository) InsertWind(ctx context.Context, rec *WindRecord) error {
	return insertWind(ctx, r.pool, rec)
}

// InsertPower stores the solar and wind records of one power prediction in
// one transaction.
func (r *PostgresRepository) InsertPower(ctx context.Context, solar *SolarRecord, wind *WindRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertSolar(ctx, tx, solar); err != nil {
		return err
	}
	if err := insertWind(ctx, tx, wind); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertSolar(ctx context.Context, db execer, rec *SolarRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	if _, err := db.Exec(ctx, insertSolarQuery,
		rec.ID, rec.Lat, rec.Lon, rec.ObservedAt, features, rec.PredictedPowerKW, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting solar prediction: %w", err)
	}
	return nil
}

func insertWind(ctx context.Context, db execer, rec *WindRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	if _, err := db.Exec(ctx, insertWindQuery,
		rec.ID, rec.Lat, rec.Lon, rec.ObservedAt, features, rec.PredictedPower, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting wind prediction: %w", err)
	}
	return nil
}

// InsertAirQuality stores an air quality record.
func (r *PostgresRepository) InsertAirQuality(ctx context.Context, rec *AirQualityRecord) error {
	query := `
		INSERT INTO aqi_predictions (
			id, lat, lon, humidity, wind_speed, wind_direction, dew_point, temperature,
			clouds_all, visibility_in_miles, rain_p_h, snow_p_h, traffic_volume, aqi, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	if _, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Lat, rec.Lon, rec.Humidity, rec.WindSpeed, rec.WindDirection, rec.DewPoint, rec.Temperature,
		rec.CloudsAll, rec.VisibilityInMiles, rec.RainPerHour, rec.SnowPerHour, rec.TrafficVolume, rec.AQI, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting aqi prediction: %w", err)
	}
	return nil
}

// ListCrops returns the newest crop records first.
func (r *PostgresRepository) ListCrops(ctx context.Context, opts ListOptions) ([]CropRecord, error) {
	query := `
		SELECT
			id::text, lat, lon, crop, confidence,
			n, p, k, ph,
			rainfall, temperature, humidity, price,
			pests, diseases, created_at
		FROM crop_predictions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, opts.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CropRecord
	for rows.Next() {
		var (
			rec      CropRecord
			pests    []byte
			diseases []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Lat, &rec.Lon, &rec.Crop, &rec.Confidence,
			&rec.N, &rec.P, &rec.K, &rec.PH,
			&rec.Rainfall, &rec.Temperature, &rec.Humidity, &rec.Price,
			&pests, &diseases, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(pests, &rec.Pests); err != nil {
			return nil, fmt.Errorf("decoding pests: %w", err)
		}
		if err := json.Unmarshal(diseases, &rec.Diseases); err != nil {
			return nil, fmt.Errorf("decoding diseases: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListSolar returns the newest solar records first.
func (r *PostgresRepository) ListSolar(ctx context.Context, opts ListOptions) ([]SolarRecord, error) {
	query := `
		SELECT id::text, lat, lon, observed_at, features, predicted_power_kw, created_at
		FROM solar_predictions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, opts.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SolarRecord
	for rows.Next() {
		var (
			rec      SolarRecord
			features []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Lat, &rec.Lon, &rec.ObservedAt, &features, &rec.PredictedPowerKW, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(features, &rec.Features); err != nil {
			return nil, fmt.Errorf("decoding features: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListWind returns the newest wind records first.
func (r *PostgresRepository) ListWind(ctx context.Context, opts ListOptions) ([]WindRecord, error) {
	query := `
		SELECT id::text, lat, lon, observed_at, features, predicted_power, created_at
		FROM wind_predictions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, opts.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []WindRecord
	for rows.Next() {
		var (
			rec      WindRecord
			features []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Lat, &rec.Lon, &rec.ObservedAt, &features, &rec.PredictedPower, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(features, &rec.Features); err != nil {
			return nil, fmt.Errorf("decoding features: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListAirQuality returns the newest air quality records first.
func (r *PostgresRepository) ListAirQuality(ctx context.Context, opts ListOptions) ([]AirQualityRecord, error) {
	query := `
		SELECT
			id::text, lat, lon, humidity, wind_speed, wind_direction, dew_point, temperature,
			clouds_all, visibility_in_miles, rain_p_h, snow_p_h, traffic_volume, aqi, created_at
		FROM aqi_predictions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, opts.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AirQualityRecord
	for rows.Next() {
		var rec AirQualityRecord
		if err := rows.Scan(
			&rec.ID, &rec.Lat, &rec.Lon, &rec.Humidity, &rec.WindSpeed, &rec.WindDirection, &rec.DewPoint, &rec.Temperature,
			&rec.CloudsAll, &rec.VisibilityInMiles, &rec.RainPerHour, &rec.SnowPerHour, &rec.TrafficVolume, &rec.AQI, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
