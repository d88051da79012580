package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
)

// ClickHouseConfig holds the ClickHouse connection settings
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseDB is the ClickHouse-backed history store
type ClickHouseDB struct {
	db  *sql.DB
	log *slog.Logger
}

var _ history.ReadWriter = (*ClickHouseDB)(nil)

// OpenClickHouse opens a database/sql handle on the ClickHouse native protocol
func OpenClickHouse(cfg ClickHouseConfig) *sql.DB {
	return clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
}

// NewClickHouseDB connects to ClickHouse and initializes the schema
func NewClickHouseDB(ctx context.Context, cfg ClickHouseConfig, log *slog.Logger) (*ClickHouseDB, error) {
	db := NewClickHouseStore(OpenClickHouse(cfg), log)

	if err := db.db.PingContext(ctx); err != nil {
		_ = db.db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	log.Info("Connected to ClickHouse", "addr", cfg.Addr, "database", cfg.Database)

	if err := db.InitSchema(ctx); err != nil {
		_ = db.db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewClickHouseStore wraps an already opened handle
func NewClickHouseStore(db *sql.DB, log *slog.Logger) *ClickHouseDB {
	return &ClickHouseDB{db: db, log: log}
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if _, err := db.db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	db.log.Info("Database schema initialized successfully")
	return nil
}

const fetchWindowSQL = `SELECT ts, value FROM (SELECT ts, value FROM sensor_readings WHERE channel = ? ORDER BY ts DESC LIMIT ?) ORDER BY ts ASC`

// FetchWindow returns the newest maxRows rows of channel, oldest first.
// Rows stored without a usable value come back as NaN.
func (db *ClickHouseDB) FetchWindow(ctx context.Context, channel string, maxRows int) ([]models.Sample, error) {
	if maxRows <= 0 {
		return []models.Sample{}, nil
	}

	rows, err := db.db.QueryContext(ctx, fetchWindowSQL, channel, maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s window: %w", channel, err)
	}
	defer rows.Close()

	samples := make([]models.Sample, 0, maxRows)
	for rows.Next() {
		var (
			ts    time.Time
			value sql.NullFloat64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", channel, err)
		}
		s := models.Sample{Timestamp: ts, Value: math.NaN()}
		if value.Valid {
			s.Value = value.Float64
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s window: %w", channel, err)
	}
	return samples, nil
}

const insertReadingSQL = `INSERT INTO sensor_readings (ts, channel, raw, value) VALUES (?, ?, ?, ?)`

// AppendReadings writes records as one batch
func (db *ClickHouseDB) AppendReadings(ctx context.Context, records []history.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ObservedAt, r.Channel, r.Raw, nullable(r.Value)); err != nil {
			return fmt.Errorf("failed to append %s reading: %w", r.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

const insertCommandSQL = `INSERT INTO command_log (ts, channel, action, payload, source, error) VALUES (?, ?, ?, ?, ?, ?)`

// AppendCommand saves a dispatched command to the command log
func (db *ClickHouseDB) AppendCommand(ctx context.Context, rec history.CommandRecord) error {
	_, err := db.db.ExecContext(ctx, insertCommandSQL,
		rec.IssuedAt,
		rec.Channel,
		string(rec.Action),
		rec.Payload,
		rec.Source,
		rec.Err,
	)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.db.Close()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
