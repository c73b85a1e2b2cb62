package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportclassifier/internal/config"
	"sportclassifier/internal/domain"
)

func recordsConfig(path string) config.RecordsConfig {
	return config.RecordsConfig{Path: path, JournalMode: "WAL", BusyTimeout: 5 * time.Second}
}

func openDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := New(context.Background(), recordsConfig(path))
	require.NoError(t, err)
	return db
}

func newRepo(t *testing.T) (*PredictionRepository, *DB) {
	t.Helper()
	db := openDB(t, filepath.Join(t.TempDir(), "predictions.db"))
	t.Cleanup(func() { db.Close() })
	return NewPredictionRepository(db), db
}

func fileID(s string) *string { return &s }

func TestInsertAndRecent(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &domain.PredictionRecord{Class: "boxing", Confidence: 0.87, StorageFileID: fileID("uploads/a.jpg"), Timestamp: base}
	second := &domain.PredictionRecord{Class: "Cricket", Confidence: 0.55, StorageFileID: fileID("uploads/b.jpg"), Timestamp: base.Add(time.Minute)}
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Cricket", records[0].Class)
	assert.Equal(t, "boxing", records[1].Class)
	assert.InDelta(t, 0.87, records[1].Confidence, 1e-9)
	require.NotNil(t, records[1].StorageFileID)
	assert.Equal(t, "uploads/a.jpg", *records[1].StorageFileID)
	assert.True(t, base.Equal(records[1].Timestamp))
}

func TestInsertNullStorageID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.PredictionRecord{Class: "swimming", Confidence: 0.4, Timestamp: time.Now()}))

	records, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].StorageFileID)
}

func TestRecentClampsLimit(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < MaxListLimit+5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.PredictionRecord{Class: "football", Confidence: 0.5, Timestamp: now.Add(time.Duration(i) * time.Second)}))
	}

	records, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, DefaultListLimit)

	records, err = repo.Recent(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, records, MaxListLimit)
}

func TestInsertAfterCloseIsPersistError(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "predictions.db"))
	repo := NewPredictionRepository(db)
	require.NoError(t, db.Close())

	err := repo.Insert(context.Background(), &domain.PredictionRecord{Class: "Rugby", Timestamp: time.Now()})
	var perr *domain.PersistError
	assert.True(t, errors.As(err, &perr))
}

func TestNewMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.db")

	db := openDB(t, path)
	require.NoError(t, NewPredictionRepository(db).Insert(context.Background(), &domain.PredictionRecord{Class: "Rugby", Confidence: 0.9, Timestamp: time.Now()}))
	require.NoError(t, db.Close())

	db = openDB(t, path)
	defer db.Close()

	version, err := db.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	records, err := NewPredictionRepository(db).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTimestampStoredAsUTCISO8601(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	local := time.Date(2025, 3, 1, 12, 30, 0, 500, time.FixedZone("CET", 3600))

	require.NoError(t, repo.Insert(ctx, &domain.PredictionRecord{Class: "boxing", Confidence: 0.6, Timestamp: local}))

	var raw string
	require.NoError(t, db.conn.QueryRowContext(ctx, "SELECT timestamp FROM predictions").Scan(&raw))
	assert.Equal(t, "2025-03-01T11:30:00.000000500Z", raw)

	records, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, local.Equal(records[0].Timestamp))
	assert.Equal(t, time.UTC, records[0].Timestamp.Location())
}

func TestRecentOrdersSubSecondTimestamps(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, &domain.PredictionRecord{Class: "later", Timestamp: base.Add(500 * time.Millisecond)}))
	require.NoError(t, repo.Insert(ctx, &domain.PredictionRecord{Class: "earlier", Timestamp: base}))

	records, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "later", records[0].Class)
}

func TestDSNFromConfig(t *testing.T) {
	assert.Equal(t, "/data/p.db?_busy_timeout=5000&_journal_mode=WAL", dsn(recordsConfig("/data/p.db")))
	assert.Equal(t, "/data/p.db", dsn(config.RecordsConfig{Path: "/data/p.db"}))
}

func TestJournalModeApplied(t *testing.T) {
	_, db := newRepo(t)

	var mode string
	require.NoError(t, db.conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
