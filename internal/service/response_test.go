package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"sportclassifier/internal/domain"
)

func TestComposeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"missing image", &domain.ValidationError{Reason: domain.ReasonMissingImage}, http.StatusBadRequest, "No image uploaded"},
		{"invalid file", &domain.ValidationError{Reason: domain.ReasonInvalidFile}, http.StatusBadRequest, "Invalid file"},
		{"too large", fmt.Errorf("form: %w", &domain.ValidationError{Reason: domain.ReasonTooLarge}), http.StatusBadRequest, "File too large"},
		{"model unavailable", &domain.InferenceError{Kind: domain.InferenceUnavailable, Err: domain.ErrModelUnavailable}, http.StatusInternalServerError, "Model initialization failed"},
		{"decode", &domain.InferenceError{Kind: domain.InferenceDecode, Err: errors.New("image: unknown format")}, http.StatusInternalServerError, "Prediction failed"},
		{"predict", &domain.InferenceError{Kind: domain.InferencePredict, Err: errors.New("cv::dnn shape mismatch")}, http.StatusInternalServerError, "Prediction failed"},
		{"staging", &domain.StagingError{Err: errors.New("disk full")}, http.StatusInternalServerError, "Failed to process file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := Compose(nil, tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, domain.ResponseEnvelope{Status: domain.StatusFail, Error: tt.msg}, body)
		})
	}
}

func TestComposeSuccess(t *testing.T) {
	labels := domain.NewLabelSet([]string{"Basketball", "Cricket"})
	pred := &domain.Prediction{
		Result:  domain.ClassificationResult{Label: labels.Lookup(1), Confidence: 0.73},
		Storage: domain.Failed(errors.New("quota")),
		Record:  domain.Skipped(),
	}

	code, body := Compose(pred, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Cricket", body.Class)
	assert.InDelta(t, 0.73, *body.Confidence, 1e-9)
	assert.Equal(t, "failed", body.StorageStatus)
	assert.Empty(t, body.Error)

	pred.Storage = domain.Succeeded()
	_, body = Compose(pred, nil)
	assert.Equal(t, "success", body.StorageStatus)
}
