package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"smartcage-backend/internal/models"
)

type ClickHouseDB struct {
	conn    driver.Conn
	timeout time.Duration
}

// ConfigEvent records an admin action or model load attempt
type ConfigEvent struct {
	Timestamp time.Time
	Event     string // login, logout, category_switch, model_load, takeover
	Channel   string
	Category  string
	ModelPath string
	Success   bool
	Error     string
}

// NewClickHouseDB connects to ClickHouse; call InitSchema before inserting
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Database: Connected to ClickHouse at %s", addr)

	return &ClickHouseDB{conn: conn, timeout: 5 * time.Second}, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database: Schema initialized successfully")
	return nil
}

// SavePrediction inserts one prediction record.
// Feature columns that do not belong to the record's channel are stored as NULL.
func (db *ClickHouseDB) SavePrediction(ctx context.Context, rec models.PredictionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	query := `
		INSERT INTO prediction_records (timestamp, channel, label, confidence, source, temp, humidity, gas_detected, ldr_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	temp, humidity, gas, ldr := PredictionColumns(rec)
	err := db.conn.Exec(ctx, query,
		rec.Timestamp,
		string(rec.Channel),
		rec.Label,
		rec.Confidence,
		string(rec.Source),
		temp,
		humidity,
		gas,
		ldr,
	)

	if err != nil {
		return fmt.Errorf("failed to insert prediction record: %w", err)
	}

	return nil
}

// PredictionColumns returns the nullable feature columns for a record's channel
func PredictionColumns(rec models.PredictionRecord) (temp, humidity *float64, gas *bool, ldr *int32) {
	r := rec.Reading
	switch rec.Channel {
	case models.ChannelTempHumidity:
		temp, humidity = &r.Temp, &r.Humidity
	case models.ChannelGas:
		temp, gas = &r.Temp, &r.GasDetected
	case models.ChannelLight:
		v := int32(r.LDRValue)
		ldr = &v
	}
	return temp, humidity, gas, ldr
}

// SaveConfigEvent inserts one admin/config audit event
func (db *ClickHouseDB) SaveConfigEvent(ctx context.Context, ev ConfigEvent) error {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	query := `
		INSERT INTO config_events (timestamp, event, channel, category, model_path, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		ev.Timestamp,
		ev.Event,
		ev.Channel,
		ev.Category,
		ev.ModelPath,
		ev.Success,
		ev.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to insert config event: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
