package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry()
	id := r.Create(3)
	require.Len(t, id, 8)

	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, job.Status)
	assert.Equal(t, 3, job.TotalFiles)
	require.Len(t, job.Files, 3)
	for i, f := range job.Files {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, PhaseWaiting, f.Phase)
	}

	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestRegistryProgressIsMonotonic(t *testing.T) {
	r := NewRegistry()
	id := r.Create(1)

	require.NoError(t, r.Update(id, PatchProgress(40, "chunking")))
	require.NoError(t, r.Update(id, PatchProgress(20, "stale update")))

	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "stale update", job.Message)
}

func TestRegistryCompletionPinsProgress(t *testing.T) {
	r := NewRegistry()
	id := r.Create(1)

	require.NoError(t, r.Update(id, PatchProgress(70, "indexing")))
	require.NoError(t, r.Update(id, PatchStatus(StatusCompleted, "done")))

	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)

	// Terminal jobs ignore further updates.
	require.NoError(t, r.Update(id, PatchProgress(10, "late")))
	job, _ = r.Get(id)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "done", job.Message)
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	id := r.Create(2)

	require.NoError(t, r.Update(id, PatchStatus(StatusProcessing, "working")))
	require.NoError(t, r.Cancel(id))
	assert.True(t, r.IsCancelled(id))

	job, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)

	// Cancelling twice is rejected.
	err = r.Cancel(id)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	err = r.Cancel("missing")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestRegistryUpdateFile(t *testing.T) {
	r := NewRegistry()
	id := r.Create(2)

	err := r.UpdateFile(id, 1, func(f *FileProgress) {
		f.FileName = "report.pdf"
		f.Phase = PhaseConverting
		f.Progress = 10
	})
	require.NoError(t, err)

	job, _ := r.Get(id)
	assert.Equal(t, "report.pdf", job.Files[1].FileName)
	assert.Equal(t, PhaseConverting, job.Files[1].Phase)
	assert.Equal(t, PhaseWaiting, job.Files[0].Phase)

	err = r.UpdateFile(id, 5, func(f *FileProgress) {})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRegistryStreamEndsOnTerminal(t *testing.T) {
	r := NewRegistry()
	id := r.Create(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := r.Stream(ctx, id, 10*time.Millisecond)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = r.Update(id, PatchStatus(StatusCompleted, "done"))
	}()

	var last Job
	for job := range ch {
		last = job
	}
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestRegistryStreamUnknownJob(t *testing.T) {
	r := NewRegistry()
	_, err := r.Stream(context.Background(), "missing", time.Second)
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}
