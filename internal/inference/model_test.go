package inference_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sportclassifier/internal/domain"
	"sportclassifier/internal/inference"
	"sportclassifier/internal/inference/inferencetest"
)

func TestHandleRetriesAfterFailedInit(t *testing.T) {
	model := inferencetest.NewStubModel(4, 1)
	load, calls := inferencetest.Loader(model, 1)
	h := inference.NewHandle(load, zaptest.NewLogger(t))

	err := h.Init(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	assert.False(t, h.Ready())

	got, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, model, got)
	assert.True(t, h.Ready())

	_, err = h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls(), "a loaded model must not be reloaded")
}

func TestHandleLoadsOnceUnderConcurrency(t *testing.T) {
	load, calls := inferencetest.Loader(inferencetest.NewStubModel(4, 1), 0)
	h := inference.NewHandle(load, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Get(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls())
}

func TestHandleRejectsInvalidSpec(t *testing.T) {
	bad := inferencetest.NewStubModel(0, 1)
	load, _ := inferencetest.Loader(bad, 0)
	h := inference.NewHandle(load, zaptest.NewLogger(t))

	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.False(t, h.Ready())
	assert.NoError(t, h.Close())
}

func TestWarmUpFeedsSpecShapedTensor(t *testing.T) {
	model := inferencetest.NewStubModel(6, 0.2, 0.8)
	model.InputSpec.Layout = inference.LayoutNCHW
	var seen inference.Tensor
	model.Func = func(in inference.Tensor) ([]float32, error) {
		seen = in
		return []float32{0.2, 0.8}, nil
	}

	outputs, err := inference.WarmUp(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, 2, outputs)
	assert.Equal(t, []int{1, 3, 6, 6}, seen.Shape)
	assert.Len(t, seen.Data, 3*6*6)
}

func TestWarmUpRejectsMismatchedGraph(t *testing.T) {
	model := inferencetest.NewStubModel(224, 1)
	model.Func = func(in inference.Tensor) ([]float32, error) {
		if in.Shape[1] != 300 {
			return nil, errors.New("input blob holds 270000 values, tensor has 150528")
		}
		return []float32{1}, nil
	}

	_, err := inference.WarmUp(context.Background(), model)
	require.Error(t, err)
	assert.ErrorContains(t, err, "224x224 nhwc")
	assert.Equal(t, 1, model.Calls())
}

func TestWarmUpRejectsEmptyOutput(t *testing.T) {
	_, err := inference.WarmUp(context.Background(), inferencetest.NewStubModel(4))
	assert.ErrorContains(t, err, "no output")
}
