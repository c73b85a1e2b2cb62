package staging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"sportclassifier/internal/domain"
)

func upload(name string, data []byte) *domain.UploadedImage {
	return &domain.UploadedImage{
		Data:        bytes.NewReader(data),
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
	}
}

func TestAcquireWritesPayload(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs, "/scratch", zaptest.NewLogger(t))
	m.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 5, 0, time.UTC) }

	staged, err := m.Acquire(context.Background(), upload("my court.jpg", []byte("payload")))
	require.NoError(t, err)

	base := filepath.Base(staged.Path)
	assert.True(t, strings.HasPrefix(base, "temp_20261017093005_"), base)
	assert.True(t, strings.HasSuffix(base, "_my_court.jpg"), base)
	assert.Equal(t, "/scratch", filepath.Dir(staged.Path))
	assert.Equal(t, int64(7), staged.Size)

	content, err := afero.ReadFile(fs, staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestAcquireRewindsPartiallyReadUpload(t *testing.T) {
	m := NewManager(afero.NewMemMapFs(), "/scratch", zaptest.NewLogger(t))
	img := upload("a.png", []byte("abcdef"))
	_, _ = img.Data.Read(make([]byte, 3))

	staged, err := m.Acquire(context.Background(), img)
	require.NoError(t, err)

	content, err := afero.ReadFile(m.Fs(), staged.Path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(content))
}

func TestAcquireFallsBackWhenNameSanitizesAway(t *testing.T) {
	m := NewManager(afero.NewMemMapFs(), "/scratch", zaptest.NewLogger(t))

	staged, err := m.Acquire(context.Background(), upload("???", []byte("x")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(staged.Path, "_image"), staged.Path)
}

func TestAcquireNamesAreUniqueWithinOneSecond(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs, "/scratch", zaptest.NewLogger(t))
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	const n = 50
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			staged, err := m.Acquire(context.Background(), upload("same.jpg", []byte("x")))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			paths[staged.Path] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, paths, n)
	entries, err := afero.ReadDir(fs, "/scratch")
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestAcquireFailureLeavesNothingBehind(t *testing.T) {
	base := afero.NewMemMapFs()
	m := NewManager(afero.NewReadOnlyFs(base), "/scratch", zaptest.NewLogger(t))

	staged, err := m.Acquire(context.Background(), upload("a.jpg", []byte("x")))
	assert.Nil(t, staged)

	var stagingErr *domain.StagingError
	require.True(t, errors.As(err, &stagingErr))

	exists, _ := afero.DirExists(base, "/scratch")
	assert.False(t, exists)
}

func TestAcquireRejectsShortUpload(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs, "/scratch", zaptest.NewLogger(t))
	img := upload("a.jpg", []byte("abc"))
	img.Size = 10

	staged, err := m.Acquire(context.Background(), img)
	assert.Nil(t, staged)

	var stagingErr *domain.StagingError
	require.True(t, errors.As(err, &stagingErr))
	assert.ErrorContains(t, err, "wrote 3 of 10 bytes")

	entries, err := afero.ReadDir(fs, "/scratch")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquireLogsUploadMetadata(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewManager(afero.NewMemMapFs(), "/scratch", zap.New(core))

	_, err := m.Acquire(context.Background(), upload("court.jpg", []byte("payload")))
	require.NoError(t, err)

	saved := logs.FilterMessage("Saved temporary file").All()
	require.Len(t, saved, 1)
	fields := saved[0].ContextMap()
	assert.Equal(t, "court.jpg", fields["original_name"])
	assert.Equal(t, "image/jpeg", fields["content_type"])
	assert.Equal(t, int64(7), fields["size"])
}

func TestAcquireHonoursCancelledContext(t *testing.T) {
	m := NewManager(afero.NewMemMapFs(), "/scratch", zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, upload("a.jpg", []byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReleaseRemovesFileAndIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManager(fs, "/scratch", zaptest.NewLogger(t))

	staged, err := m.Acquire(context.Background(), upload("a.jpg", []byte("x")))
	require.NoError(t, err)

	m.Release(staged)
	m.Release(staged)
	m.Release(nil)

	exists, err := afero.Exists(fs, staged.Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReleaseFailureIsNotEscalated(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/scratch/temp_x", []byte("x"), 0600))

	m := NewManager(afero.NewReadOnlyFs(base), "/scratch", zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		m.Release(&domain.StagedFile{Path: "/scratch/temp_x"})
	})

	exists, _ := afero.Exists(base, "/scratch/temp_x")
	assert.True(t, exists)
}
