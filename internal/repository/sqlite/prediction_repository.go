package sqlite

import (
	"context"
	"fmt"
	"time"

	"sportclassifier/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// timestampLayout is ISO-8601 in UTC with fixed-width nanoseconds, so text order is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// PredictionRepository stores one row per fully completed prediction.
type PredictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert writes rec and sets its ID. Failures are returned as *domain.PersistError.
func (r *PredictionRepository) Insert(ctx context.Context, rec *domain.PredictionRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	result, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO predictions (class, confidence, drive_file_id, timestamp)
		VALUES (?, ?, ?, ?)
	`, rec.Class, rec.Confidence, rec.StorageFileID, rec.Timestamp.UTC().Format(timestampLayout))
	if err != nil {
		return &domain.PersistError{Err: fmt.Errorf("failed to insert prediction: %w", err)}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return &domain.PersistError{Err: err}
	}
	rec.ID = id
	return nil
}

// Recent returns up to limit records, newest first. The limit is clamped to [1, MaxListLimit].
func (r *PredictionRepository) Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, class, confidence, drive_file_id, timestamp
		FROM predictions ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PredictionRecord, 0, limit)
	for rows.Next() {
		var (
			rec       domain.PredictionRecord
			timestamp string
		)
		if err := rows.Scan(&rec.ID, &rec.Class, &rec.Confidence, &rec.StorageFileID, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("prediction %d has malformed timestamp %q: %w", rec.ID, timestamp, err)
		}
		rec.Timestamp = ts.UTC()
		records = append(records, rec)
	}

	return records, rows.Err()
}
