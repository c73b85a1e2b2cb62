// Package validator checks inbound uploads before anything is written to disk.
package validator

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"sportclassifier/internal/domain"
	"sportclassifier/pkg/utils"
)

// FieldName is the multipart field the image is expected under.
const FieldName = "image"

type UploadValidator struct {
	maxSize int64
}

func NewUploadValidator(maxSize int64) *UploadValidator {
	return &UploadValidator{maxSize: maxSize}
}

func (v *UploadValidator) MaxSize() int64 {
	return v.maxSize
}

// Validate returns the image part of form, rewound to offset 0.
// The caller closes the returned image.
func (v *UploadValidator) Validate(form *multipart.Form) (*domain.UploadedImage, error) {
	if form == nil || len(form.File[FieldName]) == 0 {
		return nil, &domain.ValidationError{Reason: domain.ReasonMissingImage}
	}
	return v.ValidateFile(form.File[FieldName][0])
}

func (v *UploadValidator) ValidateFile(fh *multipart.FileHeader) (*domain.UploadedImage, error) {
	if fh == nil {
		return nil, &domain.ValidationError{Reason: domain.ReasonMissingImage}
	}

	contentType := fh.Header.Get("Content-Type")
	if fh.Filename == "" || !utils.IsImageType(contentType) {
		return nil, &domain.ValidationError{
			Reason: domain.ReasonInvalidFile,
			Err:    fmt.Errorf("filename %q, content type %q", fh.Filename, contentType),
		}
	}

	file, err := fh.Open()
	if err != nil {
		return nil, &domain.ValidationError{Reason: domain.ReasonInvalidFile, Err: err}
	}

	size, err := measure(file)
	if err != nil {
		file.Close()
		return nil, &domain.ValidationError{Reason: domain.ReasonInvalidFile, Err: err}
	}

	if size > v.maxSize {
		file.Close()
		return nil, &domain.ValidationError{
			Reason: domain.ReasonTooLarge,
			Err:    fmt.Errorf("%d bytes exceeds limit of %d", size, v.maxSize),
		}
	}

	return &domain.UploadedImage{
		Data:        file,
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// measure seeks to the end for the size and back to the start.
func measure(s io.Seeker) (int64, error) {
	size, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek end: %w", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek start: %w", err)
	}
	return size, nil
}

// TooLarge wraps a request body overflow as a validation failure.
func TooLarge(err error) error {
	return &domain.ValidationError{Reason: domain.ReasonTooLarge, Err: err}
}

// IsBodyTooLarge reports whether err came from an http.MaxBytesReader limit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
