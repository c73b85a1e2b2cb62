// Package inferencetest provides in-memory models for tests.
package inferencetest

import (
	"context"
	"errors"
	"sync"

	"sportclassifier/internal/inference"
)

// StubModel returns a fixed probability vector, or the result of Func when set.
type StubModel struct {
	InputSpec inference.InputSpec
	Probs     []float32
	Err       error
	Func      func(inference.Tensor) ([]float32, error)

	mu    sync.Mutex
	calls int
}

func NewStubModel(edge int, probs ...float32) *StubModel {
	return &StubModel{
		InputSpec: inference.InputSpec{Edge: edge, Layout: inference.LayoutNHWC, Family: inference.FamilyEfficientNet},
		Probs:     probs,
	}
}

func (m *StubModel) Spec() inference.InputSpec {
	return m.InputSpec
}

func (m *StubModel) Predict(_ context.Context, input inference.Tensor) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Func != nil {
		return m.Func(input)
	}
	out := make([]float32, len(m.Probs))
	copy(out, m.Probs)
	return out, nil
}

func (m *StubModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MeanBrightness classifies by average tensor value: dark inputs favour index 0,
// bright inputs the last index. Output is a deterministic function of the tensor.
func MeanBrightness(n int) func(inference.Tensor) ([]float32, error) {
	return func(t inference.Tensor) ([]float32, error) {
		if len(t.Data) == 0 || n == 0 {
			return nil, errors.New("empty tensor")
		}
		var sum float64
		for _, v := range t.Data {
			sum += float64(v)
		}
		mean := sum / float64(len(t.Data)) / 255

		idx := int(mean * float64(n))
		if idx >= n {
			idx = n - 1
		}
		probs := make([]float32, n)
		rest := float32(0.1) / float32(n)
		for i := range probs {
			probs[i] = rest
		}
		probs[idx] = 0.9 + rest
		return probs, nil
	}
}

// Loader returns a loader that fails the first failures calls and then yields model.
func Loader(model inference.Model, failures int) (inference.Loader, func() int) {
	var (
		mu    sync.Mutex
		calls int
	)
	load := func(context.Context) (inference.Model, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= failures {
			return nil, errors.New("model artifact not found")
		}
		return model, nil
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	return load, count
}
