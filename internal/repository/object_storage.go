package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sportclassifier/internal/domain"
	"sportclassifier/pkg/utils"
)

const uploadRetryBase = 200 * time.Millisecond

// ObjectStorage uploads staged files and returns the object key as the receipt.
type ObjectStorage struct {
	repo       S3Repository
	fs         afero.Fs
	maxRetries uint64
	log        *zap.Logger
}

func NewObjectStorage(repo S3Repository, fs afero.Fs, maxRetries uint64, log *zap.Logger) *ObjectStorage {
	return &ObjectStorage{
		repo:       repo,
		fs:         fs,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Upload writes the file at filePath under folder. Every failure is an *domain.UploadError.
func (s *ObjectStorage) Upload(ctx context.Context, filePath, folder string) (string, error) {
	base := filepath.Base(filePath)
	key := path.Join(strings.Trim(folder, "/"), uuid.New().String()+strings.ToLower(filepath.Ext(base)))
	metadata := map[string]string{"original-name": base}

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(uploadRetryBase))
	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.uploadOnce(ctx, filePath, key, metadata)
		if err == nil {
			return nil
		}
		if !shouldRetry(ctx, err) {
			return err
		}
		s.log.Warn("Upload attempt failed",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}

	return key, nil
}

func (s *ObjectStorage) uploadOnce(ctx context.Context, filePath, key string, metadata map[string]string) error {
	file, err := s.fs.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	contentType, err := utils.DetectContentType(file)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}

	return s.repo.UploadFile(ctx, key, file, contentType, metadata)
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, fs.ErrNotExist)
}
