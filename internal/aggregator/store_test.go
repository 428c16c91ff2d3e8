package aggregator

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcage-backend/internal/models"
)

var baseTime = time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

func record(ch models.Channel, label string, i int) models.PredictionRecord {
	ts := baseTime.Add(time.Duration(i) * time.Second)
	return models.PredictionRecord{
		Timestamp:  ts,
		Channel:    ch,
		Reading:    models.Reading{Channel: ch, Timestamp: ts, Temp: 28 + float64(i), Humidity: 60, LDRValue: i},
		Label:      label,
		Confidence: 100,
		Source:     models.SourceRule,
	}
}

func TestStoreStats(t *testing.T) {
	s := NewStore(100)

	stats := s.Stats(models.ChannelGas)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, map[string]int{models.LabelAman: 0, models.LabelWaspada: 0, models.LabelBahaya: 0}, stats.Counts)

	require.NoError(t, s.Record(record(models.ChannelGas, models.LabelAman, 0)))
	require.NoError(t, s.Record(record(models.ChannelGas, models.LabelBahaya, 1)))
	require.NoError(t, s.Record(record(models.ChannelGas, models.LabelBahaya, 2)))

	stats = s.Stats(models.ChannelGas)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Counts[models.LabelAman])
	assert.Equal(t, 2, stats.Counts[models.LabelBahaya])
	assert.Equal(t, 0, stats.Counts[models.LabelWaspada])

	// channels are independent
	assert.Equal(t, 0, s.Stats(models.ChannelLight).Total)
}

func TestStoreOutOfVocabulary(t *testing.T) {
	s := NewStore(100)

	require.NoError(t, s.Record(record(models.ChannelTempHumidity, models.LabelIdeal, 0)))
	require.NoError(t, s.Record(record(models.ChannelTempHumidity, models.LabelNoModel, 1)))
	require.NoError(t, s.Record(record(models.ChannelTempHumidity, models.LabelError, 2)))

	stats := s.Stats(models.ChannelTempHumidity)
	assert.Equal(t, 3, stats.Total)
	sum := 0
	for _, n := range stats.Counts {
		sum += n
	}
	assert.Equal(t, 1, sum)
	_, ok := stats.Counts[models.LabelNoModel]
	assert.False(t, ok)

	assert.Len(t, s.Records(models.ChannelTempHumidity), 3)
}

func TestStoreUnknownChannel(t *testing.T) {
	s := NewStore(10)
	assert.Error(t, s.Record(record(models.Channel("pressure"), "x", 0)))
	assert.Nil(t, s.Records(models.Channel("pressure")))
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name  string
		ideal int
		other int
		grade string
	}{
		{"all ideal", 10, 0, models.HealthExcellent},
		{"exactly 80", 8, 2, models.HealthExcellent},
		{"just under 80", 79, 21, models.HealthGood},
		{"exactly 60", 6, 4, models.HealthGood},
		{"exactly 40", 4, 6, models.HealthFair},
		{"low", 1, 9, models.HealthNeedsAttention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(1000)
			_, ok := s.HealthScore(models.ChannelTempHumidity)
			assert.False(t, ok)

			i := 0
			for ; i < tt.ideal; i++ {
				require.NoError(t, s.Record(record(models.ChannelTempHumidity, models.LabelIdeal, i)))
			}
			for j := 0; j < tt.other; j++ {
				require.NoError(t, s.Record(record(models.ChannelTempHumidity, models.LabelPanas, i+j)))
			}

			score, ok := s.HealthScore(models.ChannelTempHumidity)
			require.True(t, ok)
			assert.Equal(t, tt.grade, score.Grade)
			assert.InDelta(t, float64(tt.ideal)/float64(tt.ideal+tt.other)*100, score.IdealPercent, 1e-9)
		})
	}
}

func TestHealthScoreOnlyForIdealChannel(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Record(record(models.ChannelGas, models.LabelAman, 0)))

	_, ok := s.HealthScore(models.ChannelGas)
	assert.False(t, ok)
}

func TestRingBufferEviction(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(record(models.ChannelLight, models.LabelTerang, i)))
	}

	records := s.Records(models.ChannelLight)
	require.Len(t, records, 3)
	assert.Equal(t, 2, records[0].Reading.LDRValue)
	assert.Equal(t, 4, records[2].Reading.LDRValue)

	// counters keep every record
	assert.Equal(t, 5, s.Stats(models.ChannelLight).Total)
	assert.Equal(t, 5, s.Stats(models.ChannelLight).Counts[models.LabelTerang])

	last, ok := s.Last(models.ChannelLight)
	require.True(t, ok)
	assert.Equal(t, 4, last.Reading.LDRValue)

	latest := s.Latest(models.ChannelLight, 2)
	require.Len(t, latest, 2)
	assert.Equal(t, 3, latest[0].Reading.LDRValue)

	_, ok = s.Last(models.ChannelGas)
	assert.False(t, ok)
}

func TestRecordsAreCopies(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Record(record(models.ChannelGas, models.LabelAman, 0)))

	records := s.Records(models.ChannelGas)
	records[0].Label = "tampered"
	assert.Equal(t, models.LabelAman, s.Records(models.ChannelGas)[0].Label)
}

func TestExportCSV(t *testing.T) {
	s := NewStore(10)
	rec := record(models.ChannelTempHumidity, models.LabelPanas, 0)
	rec.Reading.Temp = 35.5
	rec.Reading.Humidity = 48
	rec.Confidence = 87.456
	rec.Source = models.SourceModel
	require.NoError(t, s.Record(rec))

	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf, models.ChannelTempHumidity))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "temp", "humidity", "prediction", "confidence", "source"}, rows[0])
	assert.Equal(t, []string{"2025-06-15 08:00:00", "35.5", "48", "Panas", "87.46", "model"}, rows[1])

	header, exported := s.Export(models.ChannelLight)
	assert.Equal(t, []string{"timestamp", "ldr_value", "prediction", "confidence", "source"}, header)
	assert.Empty(t, exported)
}
