package service

import (
	"errors"
	"net/http"

	"sportclassifier/internal/domain"
)

const (
	MessageModelUnavailable = "Model initialization failed"
	MessagePredictionFailed = "Prediction failed"
	MessageProcessingFailed = "Failed to process file"
)

// Compose maps the outcome of a request to its HTTP status and JSON body.
// Internal error details never reach the body.
func Compose(pred *domain.Prediction, err error) (int, domain.ResponseEnvelope) {
	if err != nil {
		return composeError(err)
	}

	confidence := pred.Result.Confidence
	storageStatus := string(domain.StepFailed)
	if pred.Storage.OK() {
		storageStatus = string(domain.StepSucceeded)
	}

	return http.StatusOK, domain.ResponseEnvelope{
		Status:        domain.StatusSuccess,
		Class:         pred.Result.Label.String(),
		Confidence:    &confidence,
		StorageStatus: storageStatus,
	}
}

func composeError(err error) (int, domain.ResponseEnvelope) {
	var (
		verr *domain.ValidationError
		ierr *domain.InferenceError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, fail(verr.Reason)
	case errors.As(err, &ierr) && ierr.Kind == domain.InferenceUnavailable:
		return http.StatusInternalServerError, fail(MessageModelUnavailable)
	case errors.As(err, &ierr):
		return http.StatusInternalServerError, fail(MessagePredictionFailed)
	default:
		return http.StatusInternalServerError, fail(MessageProcessingFailed)
	}
}

func fail(msg string) domain.ResponseEnvelope {
	return domain.ResponseEnvelope{Status: domain.StatusFail, Error: msg}
}
