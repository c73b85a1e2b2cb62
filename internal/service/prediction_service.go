package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sportclassifier/internal/domain"
)

const (
	stepStorage = "storage"
	stepRecord  = "record"
)

type Stager interface {
	Acquire(ctx context.Context, img *domain.UploadedImage) (*domain.StagedFile, error)
	Release(file *domain.StagedFile)
}

type Classifier interface {
	Classify(ctx context.Context, staged *domain.StagedFile) (*domain.ClassificationResult, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, filePath, folder string) (string, error)
}

type RecordStore interface {
	Insert(ctx context.Context, rec *domain.PredictionRecord) error
}

// Observer receives per-request measurements. *metrics.Metrics implements it.
type Observer interface {
	ObserveStep(step, outcome string)
	ObserveInference(d time.Duration)
}

type Options struct {
	Folder         string
	StorageTimeout time.Duration
	RecordTimeout  time.Duration
}

type PredictionService struct {
	stager     Stager
	classifier Classifier
	storage    ObjectStorage
	records    RecordStore
	observer   Observer
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

func NewPredictionService(
	stager Stager,
	classifier Classifier,
	storage ObjectStorage,
	records RecordStore,
	observer Observer,
	opts Options,
	log *zap.Logger,
) *PredictionService {
	return &PredictionService{
		stager:     stager,
		classifier: classifier,
		storage:    storage,
		records:    records,
		observer:   observer,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Predict stages img, classifies it and then runs the storage and record steps.
// The returned error is either a *domain.StagingError or a *domain.InferenceError;
// storage and record failures only show up in the Prediction's step results.
func (s *PredictionService) Predict(ctx context.Context, img *domain.UploadedImage) (*domain.Prediction, error) {
	staged, err := s.stager.Acquire(ctx, img)
	if err != nil {
		s.log.Error("Failed to stage upload",
			zap.String("filename", img.Filename),
			zap.Error(err))
		return nil, err
	}
	defer s.stager.Release(staged)

	start := time.Now()
	result, err := s.classifier.Classify(ctx, staged)
	s.observer.ObserveInference(time.Since(start))
	if err != nil {
		s.log.Error("Classification failed",
			zap.String("filename", img.Filename),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("Image classified",
		zap.String("filename", img.Filename),
		zap.String("class", result.Label.String()),
		zap.Float64("confidence", result.Confidence))

	pred := &domain.Prediction{Result: *result}

	// The client may disconnect once it has a class; the remaining steps still run.
	detached := context.WithoutCancel(ctx)

	pred.Receipt, pred.Storage = s.store(detached, staged)
	s.observer.ObserveStep(stepStorage, string(pred.Storage.Status))

	pred.Record = s.record(detached, pred)
	s.observer.ObserveStep(stepRecord, string(pred.Record.Status))

	return pred, nil
}

func (s *PredictionService) store(ctx context.Context, staged *domain.StagedFile) (*domain.StorageReceipt, domain.StepResult) {
	ctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	id, err := s.storage.Upload(ctx, staged.Path, s.opts.Folder)
	if err != nil {
		s.log.Warn("Storage upload failed",
			zap.String("path", staged.Path),
			zap.String("original_name", staged.OriginalName),
			zap.Error(err))
		return nil, domain.Failed(err)
	}

	s.log.Info("Stored upload",
		zap.String("file_id", id),
		zap.String("original_name", staged.OriginalName),
		zap.Int64("size", staged.Size))
	return &domain.StorageReceipt{ID: id}, domain.Succeeded()
}

// record persists pred only when the storage step produced a receipt.
func (s *PredictionService) record(ctx context.Context, pred *domain.Prediction) domain.StepResult {
	if pred.Receipt == nil {
		return domain.Skipped()
	}

	ctx, cancel := withTimeout(ctx, s.opts.RecordTimeout)
	defer cancel()

	fileID := pred.Receipt.ID
	rec := &domain.PredictionRecord{
		Class:         pred.Result.Label.String(),
		Confidence:    pred.Result.Confidence,
		StorageFileID: &fileID,
		Timestamp:     s.now().UTC(),
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		s.log.Warn("Failed to persist prediction",
			zap.String("file_id", fileID),
			zap.Error(err))
		return domain.Failed(err)
	}

	s.log.Info("Prediction persisted", zap.Int64("id", rec.ID))
	return domain.Succeeded()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
