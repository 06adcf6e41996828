// Package classifier loads the pre-trained sound classifier and scores
// feature vectors with it.
//
// Models are exported from the training environment as JSON (see DenseFile)
// and loaded once at startup. A loaded model is never mutated.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrShapeMismatch is returned when a feature vector does not match the
	// model's input size.
	ErrShapeMismatch = errors.New("classifier: input shape mismatch")

	// ErrUnsupportedModel is returned by Load for unknown model types.
	ErrUnsupportedModel = errors.New("classifier: unsupported model type")
)

// Classifier scores feature vectors against a fixed set of classes.
//
// # Thread Safety
//
// Implementations are immutable once loaded and must be safe for concurrent
// use. Multiple request goroutines call Predict simultaneously without any
// external locking.
type Classifier interface {
	// Predict returns one score distribution per row of batch.
	Predict(ctx context.Context, batch [][]float64) ([][]float64, error)

	// InputSize is the feature vector length the model was trained on.
	InputSize() int

	// NumClasses is the length of each score distribution.
	NumClasses() int

	// IsDangerous reports whether class should raise an alert.
	IsDangerous(class int) bool

	// ClassName is the human readable name of class.
	ClassName(class int) string
}

// Load builds a classifier of the given type from the model file at path.
func Load(modelType, path string) (Classifier, error) {
	switch strings.ToLower(modelType) {
	case "", "dense":
		return LoadDense(path)
	default:
		return nil, fmt.Errorf("%w: %q. Supported: dense", ErrUnsupportedModel, modelType)
	}
}

// Argmax returns the index of the highest score. Ties go to the lowest index;
// an empty slice gives -1.
func Argmax(scores []float64) int {
	if len(scores) == 0 {
		return -1
	}
	return floats.MaxIdx(scores)
}
