// Package servicetest provides in-memory dependent services for tests.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"sportclassifier/internal/domain"
)

// Storage records every upload. A file missing from Fs at upload time is an error.
type Storage struct {
	Fs  afero.Fs
	Err error
	// Block makes Upload wait for its context to end.
	Block bool

	mu      sync.Mutex
	uploads []string
	ctxErrs []error
}

func (s *Storage) Upload(ctx context.Context, filePath, folder string) (string, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, filePath)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()

	if s.Block {
		<-ctx.Done()
		return "", &domain.UploadError{Err: ctx.Err()}
	}
	if s.Err != nil {
		return "", &domain.UploadError{Err: s.Err}
	}
	if s.Fs != nil {
		if ok, _ := afero.Exists(s.Fs, filePath); !ok {
			return "", &domain.UploadError{Err: fmt.Errorf("%s: %w", filePath, errors.New("not staged"))}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s/file-%d", folder, len(s.uploads)), nil
}

func (s *Storage) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// ContextErrs returns ctx.Err() as observed at the start of each upload.
func (s *Storage) ContextErrs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.ctxErrs...)
}

// Records keeps inserted records in memory.
type Records struct {
	Err error

	mu      sync.Mutex
	records []domain.PredictionRecord
}

func (r *Records) Insert(ctx context.Context, rec *domain.PredictionRecord) error {
	if r.Err != nil {
		return &domain.PersistError{Err: r.Err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = int64(len(r.records) + 1)
	r.records = append(r.records, *rec)
	return nil
}

func (r *Records) Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.PredictionRecord, 0, len(r.records))
	for i := len(r.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *Records) All() []domain.PredictionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PredictionRecord(nil), r.records...)
}
