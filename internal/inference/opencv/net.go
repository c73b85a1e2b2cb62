// Package opencv runs classifier graphs (ONNX, TensorFlow, Caffe) through the OpenCV DNN module.
package opencv

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"sportclassifier/internal/config"
	"sportclassifier/internal/inference"
)

// Net is a loaded DNN. Forward passes are serialised because gocv.Net is not goroutine safe.
type Net struct {
	net  gocv.Net
	spec inference.InputSpec
	mu   sync.Mutex
}

// Loader adapts Load to the inference.Handle lifecycle.
func Loader(cfg config.ModelConfig, log *zap.Logger) inference.Loader {
	return func(ctx context.Context) (inference.Model, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		net, err := Load(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return net, nil
	}
}

// Load reads the network and resolves its input spec from the manifest, falling back to cfg.
// The spec is checked against the graph with one warm-up forward pass.
func Load(ctx context.Context, cfg config.ModelConfig, log *zap.Logger) (*Net, error) {
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.Path)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("model config file not found: %s", cfg.ConfigPath)
		}
	}

	spec, err := inference.LoadManifest(cfg.ManifestPath, inference.InputSpec{
		Edge:   cfg.InputSize,
		Layout: inference.Layout(cfg.Layout),
		Family: inference.Family(cfg.Preprocessing),
	})
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.Path, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.Path)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	n := &Net{net: net, spec: spec}
	outputs, err := inference.WarmUp(ctx, n)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("network %s does not accept the configured input: %w", cfg.Path, err)
	}
	if outputs != len(cfg.Labels) {
		log.Warn("Network output count does not match label table",
			zap.Int("outputs", outputs),
			zap.Int("labels", len(cfg.Labels)))
	}

	log.Info("Classification network initialized",
		zap.String("path", cfg.Path),
		zap.Int("input_edge", spec.Edge),
		zap.Int("outputs", outputs))

	return n, nil
}

func (n *Net) Spec() inference.InputSpec {
	return n.spec
}

// Predict runs one forward pass and returns the flattened output row.
func (n *Net) Predict(ctx context.Context, input inference.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.NewMatWithSizes(input.Shape, gocv.MatTypeCV32F)
	defer blob.Close()

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	if len(dst) != len(input.Data) {
		return nil, fmt.Errorf("input blob holds %d values, tensor has %d", len(dst), len(input.Data))
	}
	copy(dst, input.Data)

	n.mu.Lock()
	defer n.mu.Unlock()

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	probs := make([]float32, len(values))
	copy(probs, values)
	return probs, nil
}

func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
