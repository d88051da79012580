package database

// SQL schemas for the ClickHouse tables

const (
	// SensorReadingsTableSQL creates the sensor_readings table.
	// value is NULL when the raw payload did not parse.
	SensorReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			ts DateTime64(3),
			channel LowCardinality(String),
			raw String,
			value Nullable(Float64)
		) ENGINE = MergeTree()
		ORDER BY (channel, ts)
		PARTITION BY toYYYYMM(ts)
	`

	// CommandLogTableSQL creates the command_log table
	CommandLogTableSQL = `
		CREATE TABLE IF NOT EXISTS command_log (
			ts DateTime64(3),
			channel LowCardinality(String),
			action LowCardinality(String),
			payload String,
			source LowCardinality(String),
			error String
		) ENGINE = MergeTree()
		ORDER BY (channel, ts)
		PARTITION BY toYYYYMM(ts)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		SensorReadingsTableSQL,
		CommandLogTableSQL,
	}
}

// SQL schemas for the PostgreSQL tables

const (
	pgSensorReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			channel TEXT NOT NULL,
			raw TEXT NOT NULL,
			value DOUBLE PRECISION
		)
	`

	pgSensorReadingsIndexSQL = `
		CREATE INDEX IF NOT EXISTS sensor_readings_channel_ts_idx
		ON sensor_readings (channel, ts DESC)
	`

	pgCommandLogTableSQL = `
		CREATE TABLE IF NOT EXISTS command_log (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			channel TEXT NOT NULL,
			action TEXT NOT NULL,
			payload TEXT NOT NULL,
			source TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)
	`
)

func postgresTables() []string {
	return []string{
		pgSensorReadingsTableSQL,
		pgSensorReadingsIndexSQL,
		pgCommandLogTableSQL,
	}
}
