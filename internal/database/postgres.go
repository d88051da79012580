package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
)

// PostgresDB is the PostgreSQL-backed history store
type PostgresDB struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ history.ReadWriter = (*PostgresDB)(nil)

// NewPostgresDB creates a pgx pool and initializes the schema
func NewPostgresDB(ctx context.Context, databaseURL string, log *slog.Logger) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db := &PostgresDB{pool: pool, log: log}
	for _, stmt := range postgresTables() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("Connected to PostgreSQL")
	return db, nil
}

const pgFetchWindowSQL = `
	SELECT ts, value FROM (
		SELECT ts, value, id FROM sensor_readings
		WHERE channel = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2
	) w
	ORDER BY ts ASC, id ASC
`

// FetchWindow returns the newest maxRows rows of channel, oldest first
func (db *PostgresDB) FetchWindow(ctx context.Context, channel string, maxRows int) ([]models.Sample, error) {
	if maxRows <= 0 {
		return []models.Sample{}, nil
	}

	rows, err := db.pool.Query(ctx, pgFetchWindowSQL, channel, maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s window: %w", channel, err)
	}
	defer rows.Close()

	samples := make([]models.Sample, 0, maxRows)
	for rows.Next() {
		var (
			ts    time.Time
			value *float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", channel, err)
		}
		s := models.Sample{Timestamp: ts, Value: math.NaN()}
		if value != nil {
			s.Value = *value
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s window: %w", channel, err)
	}
	return samples, nil
}

// AppendReadings writes records in one round trip
func (db *PostgresDB) AppendReadings(ctx context.Context, records []history.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		var value *float64
		if r.Usable() {
			v := r.Value
			value = &v
		}
		batch.Queue(`INSERT INTO sensor_readings (ts, channel, raw, value) VALUES ($1, $2, $3, $4)`,
			r.ObservedAt, r.Channel, r.Raw, value)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append readings: %w", err)
		}
	}
	return nil
}

// AppendCommand saves a dispatched command to the command log
func (db *PostgresDB) AppendCommand(ctx context.Context, rec history.CommandRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO command_log (ts, channel, action, payload, source, error) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.IssuedAt, rec.Channel, string(rec.Action), rec.Payload, rec.Source, rec.Err)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// Close releases the pool resources
func (db *PostgresDB) Close() {
	db.pool.Close()
}
