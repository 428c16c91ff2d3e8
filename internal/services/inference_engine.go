package services

import (
	"fmt"
	"log"
	"time"

	"smartcage-backend/internal/metrics"
	"smartcage-backend/internal/ml"
	"smartcage-backend/internal/models"
)

// InferenceError reports a model invocation that failed or panicked
type InferenceError struct {
	Channel models.Channel
	Model   string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference on %s with model %s: %v", e.Channel, e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// InferenceEngine classifies readings with the registry's current classifier for each channel
type InferenceEngine struct {
	registry *ml.Registry
}

// NewInferenceEngine creates an engine backed by registry
func NewInferenceEngine(registry *ml.Registry) *InferenceEngine {
	return &InferenceEngine{registry: registry}
}

// Infer returns exactly one record for the reading. It never fails:
// model errors become the Error label with confidence 0.
func (e *InferenceEngine) Infer(reading models.Reading) models.PredictionRecord {
	rec, err := e.infer(reading)
	if err != nil {
		metrics.InferenceErrors.WithLabelValues(string(reading.Channel)).Inc()
		log.Printf("InferenceEngine: %v", err)
	}
	return rec
}

func (e *InferenceEngine) infer(reading models.Reading) (models.PredictionRecord, error) {
	start := time.Now()
	defer func() {
		metrics.InferenceDuration.WithLabelValues(string(reading.Channel)).Observe(time.Since(start).Seconds())
	}()

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = start
	}
	rec := models.PredictionRecord{
		Timestamp: ts,
		Channel:   reading.Channel,
		Reading:   reading,
	}

	slot := e.registry.Slot(reading.Channel)
	if slot == nil {
		rec.Label = models.LabelUnknown
		rec.Source = models.SourceRule
		return rec, &InferenceError{Channel: reading.Channel, Model: "none", Err: fmt.Errorf("no classifier slot")}
	}

	if !slot.HasModel() {
		rec.Label, rec.Confidence = slot.Fallback(reading)
		rec.Source = models.SourceRule
		return rec, nil
	}

	rec.Source = models.SourceModel
	label, confidence, err := predict(slot.Model, reading.Features())
	if err != nil {
		rec.Label = models.LabelError
		rec.Confidence = 0
		return rec, &InferenceError{Channel: reading.Channel, Model: slot.Model.Name, Err: err}
	}
	rec.Label = label
	rec.Confidence = confidence
	return rec, nil
}

// predict runs the model, converting panics into errors.
// Confidence is the top class probability for probabilistic models, else 100.
func predict(model *ml.Model, features []float64) (label string, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	label, err = model.Predict(features)
	if err != nil {
		return "", 0, err
	}

	probs, ok, err := model.PredictProba(features)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return label, 100.0, nil
	}

	top := 0.0
	for _, p := range probs {
		if p > top {
			top = p
		}
	}
	return label, top * 100, nil
}
