package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Artifact kinds
const (
	KindSoftmax         = "softmax"
	KindNearestCentroid = "nearest_centroid"
	KindThreshold       = "threshold"
)

// Artifact is the on-disk JSON representation of a fitted classifier
type Artifact struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Classes  []string `json:"classes"`
	Features []string `json:"features,omitempty"`

	// softmax: one coefficient row per class (a single row for binary models)
	Coef      [][]float64 `json:"coef,omitempty"`
	Intercept []float64   `json:"intercept,omitempty"`

	// nearest_centroid: one centroid per class
	Centroids [][]float64 `json:"centroids,omitempty"`

	// threshold: ascending cut points on one feature, len(classes) == len(cuts)+1
	FeatureIndex int       `json:"feature_index,omitempty"`
	Cuts         []float64 `json:"cuts,omitempty"`
}

// LoadArtifact reads and validates a model artifact from disk
func LoadArtifact(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Kind: CorruptArtifact, Path: path, Err: err}
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, &LoadError{Kind: CorruptArtifact, Path: path, Err: fmt.Errorf("failed to unmarshal model: %w", err)}
	}

	classifier, err := artifact.Build()
	if err != nil {
		return nil, &LoadError{Kind: CorruptArtifact, Path: path, Err: err}
	}

	name := artifact.Name
	if name == "" {
		name = artifact.Kind
	}
	model := NewModel(name, path, classifier)

	log.Printf("ML: Loaded %s model from %s (%s, classes=%v)", artifact.Kind, path, model.Capability, artifact.Classes)
	return model, nil
}

// Build validates the artifact and constructs its classifier
func (a *Artifact) Build() (Classifier, error) {
	if len(a.Classes) < 2 {
		return nil, fmt.Errorf("model needs at least two classes, got %d", len(a.Classes))
	}

	switch a.Kind {
	case KindSoftmax:
		return a.buildSoftmax()
	case KindNearestCentroid:
		return a.buildCentroid()
	case KindThreshold:
		return a.buildThreshold()
	default:
		return nil, fmt.Errorf("unsupported model kind %q", a.Kind)
	}
}

func (a *Artifact) buildSoftmax() (Classifier, error) {
	rows := len(a.Classes)
	if rows == 2 && len(a.Coef) == 1 {
		rows = 1
	}
	if len(a.Coef) != rows {
		return nil, fmt.Errorf("softmax model has %d coefficient rows for %d classes", len(a.Coef), len(a.Classes))
	}
	if len(a.Intercept) != rows {
		return nil, fmt.Errorf("softmax model has %d intercepts, want %d", len(a.Intercept), rows)
	}
	n, err := a.uniformWidth(a.Coef)
	if err != nil {
		return nil, err
	}
	return &softmaxClassifier{classes: a.Classes, coef: a.Coef, intercept: a.Intercept, nFeatures: n}, nil
}

func (a *Artifact) buildCentroid() (Classifier, error) {
	if len(a.Centroids) != len(a.Classes) {
		return nil, fmt.Errorf("centroid model has %d centroids for %d classes", len(a.Centroids), len(a.Classes))
	}
	n, err := a.uniformWidth(a.Centroids)
	if err != nil {
		return nil, err
	}
	return &centroidClassifier{classes: a.Classes, centroids: a.Centroids, nFeatures: n}, nil
}

func (a *Artifact) buildThreshold() (Classifier, error) {
	if len(a.Cuts) != len(a.Classes)-1 {
		return nil, fmt.Errorf("threshold model has %d cuts for %d classes", len(a.Cuts), len(a.Classes))
	}
	if !sort.Float64sAreSorted(a.Cuts) {
		return nil, fmt.Errorf("threshold cuts must be ascending")
	}
	n := a.FeatureIndex + 1
	if len(a.Features) > 0 {
		if a.FeatureIndex >= len(a.Features) {
			return nil, fmt.Errorf("feature_index %d out of range for %d features", a.FeatureIndex, len(a.Features))
		}
		n = len(a.Features)
	}
	if a.FeatureIndex < 0 {
		return nil, fmt.Errorf("feature_index must not be negative")
	}
	return &thresholdClassifier{classes: a.Classes, index: a.FeatureIndex, cuts: a.Cuts, nFeatures: n}, nil
}

// uniformWidth checks every row has the same non-zero width, matching Features if declared
func (a *Artifact) uniformWidth(rows [][]float64) (int, error) {
	n := len(rows[0])
	if n == 0 {
		return 0, fmt.Errorf("model rows must not be empty")
	}
	for i, row := range rows {
		if len(row) != n {
			return 0, fmt.Errorf("row %d has %d values, want %d", i, len(row), n)
		}
	}
	if len(a.Features) > 0 && len(a.Features) != n {
		return 0, fmt.Errorf("model declares %d features but rows have %d", len(a.Features), n)
	}
	return n, nil
}

// WriteArtifact stores an artifact as indented JSON
func WriteArtifact(path string, artifact Artifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// softmaxClassifier is a multinomial (or binary) logistic regression
type softmaxClassifier struct {
	classes   []string
	coef      [][]float64
	intercept []float64
	nFeatures int
}

func (c *softmaxClassifier) Predict(features []float64) (string, error) {
	probs, err := c.PredictProba(features)
	if err != nil {
		return "", err
	}
	return c.classes[floats.MaxIdx(probs)], nil
}

func (c *softmaxClassifier) PredictProba(features []float64) ([]float64, error) {
	if err := checkFeatures(features, c.nFeatures); err != nil {
		return nil, err
	}

	logits := make([]float64, len(c.coef))
	for i, row := range c.coef {
		logits[i] = floats.Dot(row, features) + c.intercept[i]
	}

	if len(logits) == 1 {
		p := 1 / (1 + math.Exp(-logits[0]))
		return []float64{1 - p, p}, nil
	}

	lse := floats.LogSumExp(logits)
	probs := make([]float64, len(logits))
	for i, z := range logits {
		probs[i] = math.Exp(z - lse)
	}
	return probs, nil
}

// centroidClassifier assigns the class of the nearest centroid (Euclidean)
type centroidClassifier struct {
	classes   []string
	centroids [][]float64
	nFeatures int
}

func (c *centroidClassifier) Predict(features []float64) (string, error) {
	if err := checkFeatures(features, c.nFeatures); err != nil {
		return "", err
	}

	best, bestDist := 0, math.Inf(1)
	for i, centroid := range c.centroids {
		if d := floats.Distance(centroid, features, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return c.classes[best], nil
}

// thresholdClassifier bins one feature by ascending cut points
type thresholdClassifier struct {
	classes   []string
	index     int
	cuts      []float64
	nFeatures int
}

func (c *thresholdClassifier) Predict(features []float64) (string, error) {
	if err := checkFeatures(features, c.nFeatures); err != nil {
		return "", err
	}

	x := features[c.index]
	bin := 0
	for bin < len(c.cuts) && x > c.cuts[bin] {
		bin++
	}
	return c.classes[bin], nil
}
