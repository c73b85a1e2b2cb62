package domain

import (
	"io"
	"time"
)

// UploadedImage is a validated upload. Data is positioned at offset 0.
type UploadedImage struct {
	Data        io.ReadSeeker
	Filename    string
	ContentType string
	Size        int64
}

// StagedFile is the request-scoped on-disk copy of an UploadedImage.
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

type ClassificationResult struct {
	Label      Label
	Confidence float64
}

// StorageReceipt identifies an object written to storage.
type StorageReceipt struct {
	ID string
}

// PredictionRecord is the row persisted to the record store.
type PredictionRecord struct {
	ID            int64     `json:"id"`
	Class         string    `json:"class"`
	Confidence    float64   `json:"confidence"`
	StorageFileID *string   `json:"drive_file_id"`
	Timestamp     time.Time `json:"timestamp"`
}

type StepStatus string

const (
	StepSucceeded StepStatus = "success"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult is the outcome of one best-effort dependent call.
type StepResult struct {
	Status StepStatus
	Err    error
}

func Succeeded() StepResult       { return StepResult{Status: StepSucceeded} }
func Skipped() StepResult         { return StepResult{Status: StepSkipped} }
func Failed(err error) StepResult { return StepResult{Status: StepFailed, Err: err} }
func (r StepResult) OK() bool     { return r.Status == StepSucceeded }

// Prediction is everything a successful request produced.
type Prediction struct {
	Result  ClassificationResult
	Receipt *StorageReceipt
	Storage StepResult
	Record  StepResult
}

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ResponseEnvelope is the JSON body returned by POST /predict.
type ResponseEnvelope struct {
	Status        string   `json:"status"`
	Class         string   `json:"class,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	StorageStatus string   `json:"drive_upload_status,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Close releases the underlying upload stream when it holds one.
func (u *UploadedImage) Close() error {
	if c, ok := u.Data.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
