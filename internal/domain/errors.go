package domain

import (
	"errors"
	"fmt"
)

// Validation reasons double as the client-facing error messages.
const (
	ReasonMissingImage = "No image uploaded"
	ReasonInvalidFile  = "Invalid file"
	ReasonTooLarge     = "File too large"
)

// ValidationError is a client-caused rejection. Nothing was written when it is returned.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

type InferenceErrorKind string

const (
	InferenceDecode      InferenceErrorKind = "decode"
	InferenceUnavailable InferenceErrorKind = "unavailable"
	InferencePredict     InferenceErrorKind = "predict"
)

// ErrModelUnavailable is returned when no model handle could be loaded.
var ErrModelUnavailable = errors.New("model unavailable")

type InferenceError struct {
	Kind InferenceErrorKind
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Kind, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// StagingError means the upload could not be written to the scratch directory.
type StagingError struct {
	Err error
}

func (e *StagingError) Error() string { return "staging failed: " + e.Err.Error() }
func (e *StagingError) Unwrap() error { return e.Err }

type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "storage upload failed: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "record persist failed: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }
