package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

func TestMemoryJobStore_PutAndGet(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	job := entity.NewJob("job-1", entity.AnalysisRequest{OutputDir: "out"})
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, entity.JobQueued, got.Status)
}

func TestMemoryJobStore_GetNotFound(t *testing.T) {
	store := NewMemoryJobStore()
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, port.ErrJobNotFound)
}

func TestMemoryJobStore_Update(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	job := entity.NewJob("job-2", entity.AnalysisRequest{})
	require.NoError(t, store.Put(ctx, job))

	job.Start()
	require.NoError(t, store.Update(ctx, job))

	got, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	require.Equal(t, entity.JobProcessing, got.Status)

	require.ErrorIs(t, store.Update(ctx, entity.NewJob("missing", entity.AnalysisRequest{})), port.ErrJobNotFound)
}

func TestMemoryJobStore_UpdateProgress(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	job := entity.NewJob("job-3", entity.AnalysisRequest{})
	require.NoError(t, store.Put(ctx, job))
	require.NoError(t, store.UpdateProgress(ctx, "job-3", 0.4))

	got, err := store.Get(ctx, "job-3")
	require.NoError(t, err)
	require.Equal(t, 0.4, got.Progress)

	require.ErrorIs(t, store.UpdateProgress(ctx, "missing", 0.5), port.ErrJobNotFound)
}

func TestMemoryJobStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	job := entity.NewJob("job-4", entity.AnalysisRequest{})
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, "job-4")
	require.NoError(t, err)
	got.Status = entity.JobFailed

	again, err := store.Get(ctx, "job-4")
	require.NoError(t, err)
	require.Equal(t, entity.JobQueued, again.Status)
}
