// Package classify maps feature vectors to labelled predictions using
// pre-trained model artifacts.
package classify

import (
	"errors"
	"fmt"

	"github.com/ayusman/ishara/internal/feature"
)

var (
	// ErrModelUnavailable is returned when the requested mode has no model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrShapeMismatch is returned when an input does not match the model width.
	ErrShapeMismatch = errors.New("input shape mismatch")
)

// Model is a trained probabilistic classifier.
type Model interface {
	// Classes returns the label of each probability index.
	Classes() []string
	// InputWidth is the expected input length.
	InputWidth() int
	// PredictProba returns one probability per class.
	PredictProba(x []float64) ([]float64, error)
}

// Result is the best class for one input.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Engine runs the static (letter) and sequence (word) classifiers.
// Either model may be nil, which disables that mode only.
type Engine struct {
	static   Model
	sequence Model
}

// NewEngine creates an Engine and checks each model against the vector
// width it will receive. A mismatch is a configuration error.
func NewEngine(static, sequence Model, seqLen int) (*Engine, error) {
	if static != nil && static.InputWidth() != feature.Width {
		return nil, fmt.Errorf("%w: static model expects %d features, extractor produces %d",
			ErrShapeMismatch, static.InputWidth(), feature.Width)
	}
	if sequence != nil && sequence.InputWidth() != feature.Width*seqLen {
		return nil, fmt.Errorf("%w: sequence model expects %d features, window produces %d",
			ErrShapeMismatch, sequence.InputWidth(), feature.Width*seqLen)
	}
	return &Engine{static: static, sequence: sequence}, nil
}

// StaticAvailable reports whether letter classification is possible.
func (e *Engine) StaticAvailable() bool {
	return e.static != nil
}

// SequenceAvailable reports whether word classification is possible.
func (e *Engine) SequenceAvailable() bool {
	return e.sequence != nil
}

// ClassifyStatic classifies a single-frame feature vector.
func (e *Engine) ClassifyStatic(v feature.Vector) (Result, error) {
	return classify(e.static, v)
}

// ClassifySequence classifies a flattened window of feature vectors.
func (e *Engine) ClassifySequence(flat feature.Vector) (Result, error) {
	return classify(e.sequence, flat)
}

func classify(m Model, x []float64) (Result, error) {
	if m == nil {
		return Result{}, ErrModelUnavailable
	}
	if len(x) != m.InputWidth() {
		return Result{}, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(x), m.InputWidth())
	}

	probs, err := m.PredictProba(x)
	if err != nil {
		return Result{}, err
	}

	classes := m.Classes()
	if len(probs) != len(classes) || len(probs) == 0 {
		return Result{}, fmt.Errorf("model returned %d probabilities for %d classes", len(probs), len(classes))
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	return Result{Label: classes[best], Confidence: probs[best]}, nil
}
