package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

func newTestSQLiteStore(t *testing.T) *SQLiteJobStore {
	t.Helper()
	store, err := NewSQLiteJobStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteJobStore_RoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	job := entity.NewJob("job-1", entity.AnalysisRequest{
		ReferenceVideoPath: "ref.mp4",
		DamagedVideoPath:   "dam.mp4",
		OutputDir:          "out",
	})
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", got.ID)
	require.Equal(t, entity.JobKindAnalysis, got.Kind)
	require.Equal(t, "ref.mp4", got.Request.ReferenceVideoPath)
}

func TestSQLiteJobStore_UpdateAndProgress(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	job := entity.NewJob("job-2", entity.AnalysisRequest{})
	require.NoError(t, store.Put(ctx, job))

	require.NoError(t, store.UpdateProgress(ctx, "job-2", 0.7))
	got, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, 0.7, got.Progress)

	job.Complete(&entity.AnalysisResult{DiffVideoPath: "diff.mp4"})
	require.NoError(t, store.Update(ctx, job))

	got, err = store.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, entity.JobCompleted, got.Status)
	require.Equal(t, "diff.mp4", got.Result.DiffVideoPath)
}

func TestSQLiteJobStore_NotFound(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, port.ErrJobNotFound)
	require.ErrorIs(t, store.UpdateProgress(ctx, "missing", 0.1), port.ErrJobNotFound)
	require.ErrorIs(t, store.Update(ctx, entity.NewJob("missing", entity.AnalysisRequest{})), port.ErrJobNotFound)
}
