// Package inference turns staged images into model tensors and model output into labels.
package inference

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sportclassifier/internal/domain"
)

type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// InputSpec describes the tensor a model expects. It is fixed once the model is loaded.
type InputSpec struct {
	Edge   int
	Layout Layout
	Family Family
}

func (s InputSpec) Validate() error {
	if s.Edge <= 0 {
		return fmt.Errorf("input edge must be positive, got %d", s.Edge)
	}
	if s.Layout != LayoutNHWC && s.Layout != LayoutNCHW {
		return fmt.Errorf("unsupported tensor layout %q", s.Layout)
	}
	if _, ok := families[s.Family]; !ok {
		return fmt.Errorf("unsupported preprocessing family %q", s.Family)
	}
	return nil
}

// Tensor is a dense float32 batch, Shape is [1, H, W, C] or [1, C, H, W].
type Tensor struct {
	Shape  []int
	Layout Layout
	Data   []float32
}

// Model is a loaded classifier returning one probability per label.
type Model interface {
	Spec() InputSpec
	Predict(ctx context.Context, input Tensor) ([]float32, error)
}

// WarmUp runs one forward pass on a zero tensor shaped by model.Spec(). A graph whose
// real input disagrees with the resolved spec fails here instead of on the first request.
// It returns the number of outputs the model produced.
func WarmUp(ctx context.Context, model Model) (int, error) {
	spec := model.Spec()
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	input := Tensor{
		Shape:  tensorShape(spec),
		Layout: spec.Layout,
		Data:   make([]float32, 3*spec.Edge*spec.Edge),
	}
	probs, err := model.Predict(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("warm-up pass with %dx%d %s input failed: %w", spec.Edge, spec.Edge, spec.Layout, err)
	}
	if len(probs) == 0 {
		return 0, fmt.Errorf("warm-up pass produced no output")
	}
	return len(probs), nil
}

// Loader produces a ready model or fails when the artifact is missing or corrupt.
type Loader func(ctx context.Context) (Model, error)

type loaded struct {
	model Model
}

// Handle is the process-wide model. It is loaded at most once successfully;
// failed loads are retried by the next caller.
type Handle struct {
	load    Loader
	log     *zap.Logger
	mu      sync.Mutex
	current atomic.Pointer[loaded]
}

func NewHandle(load Loader, log *zap.Logger) *Handle {
	return &Handle{load: load, log: log}
}

// Init loads the model eagerly. A failure is logged and returned but leaves the handle usable.
func (h *Handle) Init(ctx context.Context) error {
	_, err := h.Get(ctx)
	if err != nil {
		h.log.Error("Initial model load failed, will retry on first request", zap.Error(err))
	}
	return err
}

func (h *Handle) Get(ctx context.Context) (Model, error) {
	if l := h.current.Load(); l != nil {
		return l.model, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if l := h.current.Load(); l != nil {
		return l.model, nil
	}

	model, err := h.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: loader returned no model", domain.ErrModelUnavailable)
	}
	if err := model.Spec().Validate(); err != nil {
		closeModel(model)
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	h.current.Store(&loaded{model: model})
	spec := model.Spec()
	h.log.Info("Model loaded",
		zap.Int("input_edge", spec.Edge),
		zap.String("layout", string(spec.Layout)),
		zap.String("preprocessing", string(spec.Family)))

	return model, nil
}

func (h *Handle) Ready() bool {
	return h.current.Load() != nil
}

func (h *Handle) Close() error {
	if l := h.current.Load(); l != nil {
		return closeModel(l.model)
	}
	return nil
}

func closeModel(m Model) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
