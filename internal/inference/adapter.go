package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sportclassifier/internal/domain"
)

// probabilityTolerance absorbs float rounding in softmax outputs.
const probabilityTolerance = 1e-4

// Adapter classifies staged files with the process-wide model.
type Adapter struct {
	handle    *Handle
	labels    domain.LabelSet
	fs        afero.Fs
	maxPixels int64
	log       *zap.Logger
}

type AdapterOption func(*Adapter)

// WithMaxPixels overrides DefaultMaxPixels.
func WithMaxPixels(n int64) AdapterOption {
	return func(a *Adapter) {
		a.maxPixels = n
	}
}

func NewAdapter(handle *Handle, labels domain.LabelSet, fs afero.Fs, log *zap.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		handle:    handle,
		labels:    labels,
		fs:        fs,
		maxPixels: DefaultMaxPixels,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify decodes the staged file, runs the model and returns the top-1 label.
func (a *Adapter) Classify(ctx context.Context, staged *domain.StagedFile) (*domain.ClassificationResult, error) {
	model, err := a.handle.Get(ctx)
	if err != nil {
		return nil, &domain.InferenceError{Kind: domain.InferenceUnavailable, Err: err}
	}

	file, err := a.fs.Open(staged.Path)
	if err != nil {
		return nil, &domain.InferenceError{Kind: domain.InferenceDecode, Err: err}
	}
	img, err := Decode(file, a.maxPixels)
	file.Close()
	if err != nil {
		a.log.Warn("Failed to decode staged image",
			zap.String("original_name", staged.OriginalName),
			zap.Error(err))
		return nil, &domain.InferenceError{Kind: domain.InferenceDecode, Err: err}
	}

	tensor, err := ToTensor(img, model.Spec())
	if err != nil {
		return nil, &domain.InferenceError{Kind: domain.InferencePredict, Err: err}
	}

	probs, err := model.Predict(ctx, tensor)
	if err != nil {
		return nil, &domain.InferenceError{Kind: domain.InferencePredict, Err: err}
	}
	if len(probs) != a.labels.Len() {
		a.log.Warn("Model output length does not match label table",
			zap.Int("outputs", len(probs)),
			zap.Int("labels", a.labels.Len()))
	}

	index, confidence, err := top1(probs)
	if err != nil {
		return nil, &domain.InferenceError{Kind: domain.InferencePredict, Err: err}
	}

	result := &domain.ClassificationResult{
		Label:      a.labels.Lookup(index),
		Confidence: confidence,
	}

	a.log.Info("Prediction",
		zap.String("class", result.Label.String()),
		zap.Float64("confidence", result.Confidence),
		zap.Int("index", index))

	return result, nil
}

// top1 returns the index and value of the highest probability. Ties keep the lowest index.
func top1(probs []float32) (int, float64, error) {
	if len(probs) == 0 {
		return 0, 0, errors.New("model returned an empty probability vector")
	}

	best := 0
	for i, p := range probs {
		if math.IsNaN(float64(p)) {
			return 0, 0, fmt.Errorf("model returned NaN at index %d", i)
		}
		if p > probs[best] {
			best = i
		}
	}

	confidence := float64(probs[best])
	switch {
	case confidence < -probabilityTolerance || confidence > 1+probabilityTolerance:
		return 0, 0, fmt.Errorf("model output %v at index %d is not a probability", confidence, best)
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}

	return best, confidence, nil
}
