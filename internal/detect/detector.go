// Package detect runs the clip -> features -> classifier pipeline and turns
// the classifier output into a Prediction.
package detect

import (
	"context"
	"errors"
	"fmt"

	"soundguard/internal/audio"
	"soundguard/internal/classifier"
	"soundguard/internal/features"
	"soundguard/internal/model"
)

// Detector pairs a feature extractor with the classifier trained on its output.
// All parts are read-only, so a Detector is shared by all requests.
type Detector struct {
	loader     *audio.Loader
	extractor  *features.Extractor
	classifier classifier.Classifier
}

// New checks that the classifier accepts the vectors the extractor produces.
func New(loader *audio.Loader, extractor *features.Extractor, clf classifier.Classifier) (*Detector, error) {
	if loader == nil || extractor == nil || clf == nil {
		return nil, errors.New("detect: loader, extractor and classifier are required")
	}
	if clf.InputSize() != extractor.Size() {
		return nil, fmt.Errorf("%w: model expects %d features, extractor produces %d",
			classifier.ErrShapeMismatch, clf.InputSize(), extractor.Size())
	}
	return &Detector{loader: loader, extractor: extractor, classifier: clf}, nil
}

// Classifier returns the underlying classifier.
func (d *Detector) Classifier() classifier.Classifier { return d.classifier }

// DetectFile loads the audio file at path at the extractor's sample rate,
// extracts its features and classifies them.
func (d *Detector) DetectFile(ctx context.Context, path string) (*model.Prediction, error) {
	clip, err := d.loader.Load(ctx, path, d.extractor.Config().SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	vec, err := d.extractor.Extract(clip)
	if err != nil {
		return nil, fmt.Errorf("feature extraction failed: %w", err)
	}

	pred, err := d.Detect(ctx, vec)
	if err != nil {
		return nil, err
	}
	pred.Duration = clip.Duration()
	return pred, nil
}

// Detect classifies a single feature vector. The highest score wins, ties
// going to the lowest class index.
func (d *Detector) Detect(ctx context.Context, vec features.Vector) (*model.Prediction, error) {
	out, err := d.classifier.Predict(ctx, [][]float64{vec})
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	if len(out) != 1 || len(out[0]) == 0 {
		return nil, fmt.Errorf("prediction failed: classifier returned %d rows", len(out))
	}

	scores := out[0]
	class := classifier.Argmax(scores)
	pred := model.NewPrediction(class, scores, d.classifier.IsDangerous(class))
	pred.ClassName = d.classifier.ClassName(class)
	return pred, nil
}
