package models

import (
	"math"
	"time"
)

// Source identifies which classifier produced a prediction
type Source string

const (
	SourceModel Source = "model"
	SourceRule  Source = "rule"
)

// PredictionRecord is the stored outcome of classifying one reading
type PredictionRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Channel    Channel   `json:"channel"`
	Reading    Reading   `json:"reading"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"` // 0-100
	Source     Source    `json:"source"`
}

// OutboundPrediction is the payload published back to the sensor node
type OutboundPrediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// Outbound converts the record into its wire representation
func (r PredictionRecord) Outbound() OutboundPrediction {
	return OutboundPrediction{
		Label:      r.Label,
		Confidence: RoundConfidence(r.Confidence),
		Timestamp:  r.Timestamp.Format(TimestampLayout),
	}
}

// RoundConfidence rounds to two decimal places
func RoundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

// ChannelStats holds monotonically increasing counters for a channel
type ChannelStats struct {
	Channel Channel        `json:"channel"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
}

// Percent returns the share of records with label, 0 when there are none
func (s ChannelStats) Percent(label string) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Counts[label]) / float64(s.Total) * 100
}

// Health grades
const (
	HealthExcellent      = "EXCELLENT"
	HealthGood           = "GOOD"
	HealthFair           = "FAIR"
	HealthNeedsAttention = "NEEDS ATTENTION"
)

// HealthScore is the ideal-label share of a channel and its grade
type HealthScore struct {
	IdealPercent float64 `json:"ideal_percent"`
	Grade        string  `json:"grade"`
}

// GradeHealth maps an ideal percentage to its grade
func GradeHealth(idealPercent float64) string {
	switch {
	case idealPercent >= 80:
		return HealthExcellent
	case idealPercent >= 60:
		return HealthGood
	case idealPercent >= 40:
		return HealthFair
	default:
		return HealthNeedsAttention
	}
}
