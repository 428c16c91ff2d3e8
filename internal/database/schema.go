package database

// SQL schemas for all ClickHouse tables

const (
	// PredictionRecordsTableSQL creates the prediction_records table
	PredictionRecordsTableSQL = `
		CREATE TABLE IF NOT EXISTS prediction_records (
			timestamp DateTime64(3),
			channel LowCardinality(String),
			label LowCardinality(String),
			confidence Float64,
			source LowCardinality(String),
			temp Nullable(Float64),
			humidity Nullable(Float64),
			gas_detected Nullable(Bool),
			ldr_value Nullable(Int32)
		) ENGINE = MergeTree()
		ORDER BY (channel, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// ConfigEventsTableSQL creates the config_events table (admin actions and model loads)
	ConfigEventsTableSQL = `
		CREATE TABLE IF NOT EXISTS config_events (
			timestamp DateTime64(3),
			event LowCardinality(String),
			channel String,
			category String,
			model_path String,
			success Bool,
			error String
		) ENGINE = MergeTree()
		ORDER BY timestamp
		PARTITION BY toYYYYMM(timestamp)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		PredictionRecordsTableSQL,
		ConfigEventsTableSQL,
	}
}
