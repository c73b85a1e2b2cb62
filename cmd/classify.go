package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"sportclassifier/internal/domain"
	"sportclassifier/internal/inference"
	"sportclassifier/internal/inference/opencv"
)

// classification is one JSON line of classify output.
type classification struct {
	File       string   `json:"file"`
	Class      string   `json:"class,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func NewClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE...",
		Short: "Classify local image files without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			zlog := log.Desugar()
			model := inference.NewHandle(opencv.Loader(cfg.Model, zlog), zlog)
			defer model.Close()

			adapter := inference.NewAdapter(model, domain.NewLabelSet(cfg.Model.Labels), afero.NewOsFs(), zlog,
				inference.WithMaxPixels(cfg.Model.MaxPixels))
			return classifyFiles(cmd.Context(), cmd.OutOrStdout(), adapter, args)
		},
	}
}

type fileClassifier interface {
	Classify(ctx context.Context, staged *domain.StagedFile) (*domain.ClassificationResult, error)
}

// classifyFiles writes one line per file and fails if any file could not be classified.
func classifyFiles(ctx context.Context, out io.Writer, classifier fileClassifier, files []string) error {
	enc := json.NewEncoder(out)
	failed := 0

	for _, file := range files {
		line := classification{File: file}

		result, err := classifier.Classify(ctx, &domain.StagedFile{Path: file, OriginalName: file})
		if err != nil {
			failed++
			line.Error = err.Error()
		} else {
			confidence := result.Confidence
			line.Class = result.Label.String()
			line.Confidence = &confidence
		}

		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be classified", failed, len(files))
	}
	return nil
}
