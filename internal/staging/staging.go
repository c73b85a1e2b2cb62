// Package staging owns the per-request scratch copies of uploaded images.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sportclassifier/internal/domain"
	"sportclassifier/pkg/utils"
)

const (
	filePrefix      = "temp_"
	timestampLayout = "20060102150405"
	fallbackName    = "image"
)

// Manager writes uploads into a scratch directory under unique names and removes them again.
// Requests never share a file, so no locking is needed.
type Manager struct {
	fs  afero.Fs
	dir string
	log *zap.Logger
	now func() time.Time
}

func NewManager(fs afero.Fs, dir string, log *zap.Logger) *Manager {
	return &Manager{
		fs:  fs,
		dir: dir,
		log: log,
		now: time.Now,
	}
}

// Fs exposes the filesystem staged files live on.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// Acquire copies img into the scratch directory. On error nothing is left behind.
func (m *Manager) Acquire(ctx context.Context, img *domain.UploadedImage) (*domain.StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StagingError{Err: err}
	}

	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return nil, &domain.StagingError{Err: fmt.Errorf("create scratch dir %s: %w", m.dir, err)}
	}

	if _, err := img.Data.Seek(0, io.SeekStart); err != nil {
		return nil, &domain.StagingError{Err: fmt.Errorf("rewind upload: %w", err)}
	}

	path := filepath.Join(m.dir, m.fileName(img.Filename, m.now()))

	file, err := m.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, &domain.StagingError{Err: fmt.Errorf("create %s: %w", path, err)}
	}

	written, copyErr := io.Copy(file, img.Data)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && img.Size > 0 && written != img.Size {
		copyErr = fmt.Errorf("short copy: wrote %d of %d bytes", written, img.Size)
	}
	if copyErr != nil {
		if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			m.log.Error("Failed to remove partial staged file", zap.String("path", path), zap.Error(err))
		}
		return nil, &domain.StagingError{Err: fmt.Errorf("write %s: %w", path, copyErr)}
	}

	m.log.Info("Saved temporary file",
		zap.String("path", path),
		zap.String("original_name", img.Filename),
		zap.String("content_type", img.ContentType),
		zap.Int64("size", written))

	return &domain.StagedFile{
		Path:         path,
		OriginalName: img.Filename,
		Size:         written,
	}, nil
}

// Release deletes the staged file. Failures are logged and never returned.
func (m *Manager) Release(file *domain.StagedFile) {
	if file == nil {
		return
	}

	if err := m.fs.Remove(file.Path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		m.log.Error("Failed to remove temporary file",
			zap.String("path", file.Path),
			zap.Error(err))
		return
	}

	m.log.Info("Removed temporary file", zap.String("path", file.Path))
}

// fileName is temp_<second timestamp>_<random suffix>_<sanitized original name>.
func (m *Manager) fileName(original string, at time.Time) string {
	name := utils.SanitizeFilename(original)
	if name == "" {
		name = fallbackName
	}
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s%s_%s_%s", filePrefix, at.Format(timestampLayout), suffix, name)
}
