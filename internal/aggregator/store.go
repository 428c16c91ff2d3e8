package aggregator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"smartcage-backend/internal/models"
)

// ChannelState holds the counters and bounded record log of one channel
type ChannelState struct {
	total  int
	counts map[string]int

	// ring buffer of the newest records
	log   []models.PredictionRecord
	start int
	size  int
}

func newChannelState(capacity int) *ChannelState {
	return &ChannelState{
		counts: make(map[string]int),
		log:    make([]models.PredictionRecord, capacity),
	}
}

func (cs *ChannelState) append(rec models.PredictionRecord) {
	capacity := len(cs.log)
	if cs.size < capacity {
		cs.log[(cs.start+cs.size)%capacity] = rec
		cs.size++
		return
	}
	cs.log[cs.start] = rec
	cs.start = (cs.start + 1) % capacity
}

// at returns the i-th oldest retained record
func (cs *ChannelState) at(i int) models.PredictionRecord {
	return cs.log[(cs.start+i)%len(cs.log)]
}

// Store accumulates prediction records and running statistics per channel.
// Counters cover every record since start; the record log keeps only the newest entries.
type Store struct {
	channels map[models.Channel]*ChannelState
	capacity int
	mu       sync.RWMutex
}

// NewStore creates a store keeping at most capacity records per channel
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Store{
		channels: make(map[models.Channel]*ChannelState),
		capacity: capacity,
	}
	for _, ch := range models.Channels() {
		s.channels[ch] = newChannelState(capacity)
	}
	return s
}

// Capacity returns the per-channel record log size
func (s *Store) Capacity() int {
	return s.capacity
}

// Record appends a prediction and updates the channel counters.
// Labels outside the channel vocabulary only count towards the total.
func (s *Store) Record(rec models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.channels[rec.Channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", rec.Channel)
	}

	cs.append(rec)
	cs.total++
	if rec.Channel.Known(rec.Label) {
		cs.counts[rec.Label]++
	}
	return nil
}

// Stats returns a copy of the channel counters with every vocabulary label present
func (s *Store) Stats(ch models.Channel) models.ChannelStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.ChannelStats{Channel: ch, Counts: make(map[string]int)}
	for _, label := range ch.Vocabulary() {
		stats.Counts[label] = 0
	}

	cs, ok := s.channels[ch]
	if !ok {
		return stats
	}
	stats.Total = cs.total
	for label, n := range cs.counts {
		stats.Counts[label] = n
	}
	return stats
}

// HealthScore grades the ideal-label share of a channel.
// ok is false for channels without an ideal label or without records.
func (s *Store) HealthScore(ch models.Channel) (models.HealthScore, bool) {
	ideal, ok := ch.IdealLabel()
	if !ok {
		return models.HealthScore{}, false
	}

	stats := s.Stats(ch)
	if stats.Total == 0 {
		return models.HealthScore{}, false
	}

	pct := stats.Percent(ideal)
	return models.HealthScore{IdealPercent: pct, Grade: models.GradeHealth(pct)}, true
}

// Records returns the retained records of a channel, oldest first
func (s *Store) Records(ch models.Channel) []models.PredictionRecord {
	return s.Latest(ch, 0)
}

// Latest returns up to limit of the newest records, oldest first. limit <= 0 returns all.
func (s *Store) Latest(ch models.Channel, limit int) []models.PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.channels[ch]
	if !ok {
		return nil
	}

	n := cs.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.PredictionRecord, 0, n)
	for i := cs.size - n; i < cs.size; i++ {
		out = append(out, cs.at(i))
	}
	return out
}

// Last returns the newest record of a channel
func (s *Store) Last(ch models.Channel) (models.PredictionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.channels[ch]
	if !ok || cs.size == 0 {
		return models.PredictionRecord{}, false
	}
	return cs.at(cs.size - 1), true
}

// ExportHeader returns the tabular columns for a channel
func ExportHeader(ch models.Channel) []string {
	header := []string{"timestamp"}
	header = append(header, ch.FeatureNames()...)
	return append(header, "prediction", "confidence", "source")
}

// Export renders the retained records of a channel as rows of strings
func (s *Store) Export(ch models.Channel) (header []string, rows [][]string) {
	records := s.Records(ch)
	header = ExportHeader(ch)
	rows = make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, exportRow(rec))
	}
	return header, rows
}

func exportRow(rec models.PredictionRecord) []string {
	row := []string{rec.Timestamp.Format(models.TimestampLayout)}

	r := rec.Reading
	switch rec.Channel {
	case models.ChannelTempHumidity:
		row = append(row, formatFloat(r.Temp), formatFloat(r.Humidity))
	case models.ChannelGas:
		row = append(row, strconv.FormatBool(r.GasDetected), formatFloat(r.Temp))
	case models.ChannelLight:
		row = append(row, strconv.Itoa(r.LDRValue))
	}

	return append(row, rec.Label, strconv.FormatFloat(models.RoundConfidence(rec.Confidence), 'f', 2, 64), string(rec.Source))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the channel export as CSV
func (s *Store) WriteCSV(w io.Writer, ch models.Channel) error {
	header, rows := s.Export(ch)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}
