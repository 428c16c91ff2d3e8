package ml

import (
	"errors"
	"fmt"
)

// LoadErrorKind classifies model load failures
type LoadErrorKind int

const (
	NotFound LoadErrorKind = iota + 1
	CorruptArtifact
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case CorruptArtifact:
		return "corrupt artifact"
	default:
		return "unknown"
	}
}

var (
	// ErrModelNotFound matches LoadErrors of kind NotFound
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrCorruptArtifact matches LoadErrors of kind CorruptArtifact
	ErrCorruptArtifact = errors.New("corrupt model artifact")
)

// LoadError reports why a model artifact could not be loaded
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load model %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("load model %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrModelNotFound:
		return e.Kind == NotFound
	case ErrCorruptArtifact:
		return e.Kind == CorruptArtifact
	}
	return false
}

// ErrFeatureMismatch is returned by classifiers given a vector of the wrong length
var ErrFeatureMismatch = errors.New("feature vector length mismatch")

func checkFeatures(features []float64, want int) error {
	if len(features) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), want)
	}
	return nil
}
