package ml

import "time"

// Classifier is a fitted model that returns a single label per feature vector
type Classifier interface {
	Predict(features []float64) (string, error)
}

// ProbabilisticClassifier additionally exposes per-class probabilities
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(features []float64) ([]float64, error)
}

// Capability tags what a loaded model can report
type Capability string

const (
	PointEstimate         Capability = "point"
	ProbabilisticEstimate Capability = "probabilistic"
)

// Model is a loaded classifier with its capability resolved once at load time
type Model struct {
	Name       string
	Path       string
	Capability Capability
	LoadedAt   time.Time

	classifier Classifier
	proba      ProbabilisticClassifier
}

// NewModel wraps a classifier, detecting whether it can report probabilities
func NewModel(name, path string, c Classifier) *Model {
	m := &Model{
		Name:       name,
		Path:       path,
		Capability: PointEstimate,
		LoadedAt:   time.Now(),
		classifier: c,
	}
	if p, ok := c.(ProbabilisticClassifier); ok {
		m.Capability = ProbabilisticEstimate
		m.proba = p
	}
	return m
}

// Predict returns the model's label for the feature vector
func (m *Model) Predict(features []float64) (string, error) {
	return m.classifier.Predict(features)
}

// PredictProba returns class probabilities; ok is false for point estimates
func (m *Model) PredictProba(features []float64) (probs []float64, ok bool, err error) {
	if m.proba == nil {
		return nil, false, nil
	}
	probs, err = m.proba.PredictProba(features)
	return probs, true, err
}
