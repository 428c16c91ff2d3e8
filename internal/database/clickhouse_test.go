package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcage-backend/internal/models"
)

func TestPredictionColumns(t *testing.T) {
	gas := models.PredictionRecord{
		Channel: models.ChannelGas,
		Reading: models.Reading{Channel: models.ChannelGas, GasDetected: true, Temp: 60},
	}
	temp, humidity, detected, ldr := PredictionColumns(gas)
	require.NotNil(t, temp)
	assert.Equal(t, 60.0, *temp)
	assert.Nil(t, humidity)
	require.NotNil(t, detected)
	assert.True(t, *detected)
	assert.Nil(t, ldr)

	light := models.PredictionRecord{
		Channel: models.ChannelLight,
		Reading: models.Reading{Channel: models.ChannelLight, LDRValue: 2048},
	}
	temp, humidity, detected, ldr = PredictionColumns(light)
	assert.Nil(t, temp)
	assert.Nil(t, humidity)
	assert.Nil(t, detected)
	require.NotNil(t, ldr)
	assert.Equal(t, int32(2048), *ldr)
}

func TestAllTables(t *testing.T) {
	tables := AllTables()
	require.Len(t, tables, 2)
	assert.True(t, strings.Contains(tables[0], "prediction_records"))
	assert.True(t, strings.Contains(tables[1], "config_events"))
}

func TestNewClickHouseDBUnreachable(t *testing.T) {
	db, err := NewClickHouseDB("127.0.0.1:1", "default", "default", "")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestClickHouseRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("TEST_CLICKHOUSE_ADDR not set")
	}

	db, err := NewClickHouseDB(addr, "default", "default", "")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))
	require.NoError(t, db.SavePrediction(ctx, models.PredictionRecord{
		Timestamp:  time.Now(),
		Channel:    models.ChannelTempHumidity,
		Reading:    models.Reading{Channel: models.ChannelTempHumidity, Temp: 29, Humidity: 65},
		Label:      models.LabelIdeal,
		Confidence: 92.5,
		Source:     models.SourceModel,
	}))
	require.NoError(t, db.SaveConfigEvent(ctx, ConfigEvent{
		Timestamp: time.Now(),
		Event:     "category_switch",
		Category:  "4-7",
		Success:   true,
	}))
}
