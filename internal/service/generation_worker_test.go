package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/jobs"
)

func queuedJob(id string, obligations ...models.ObligationRecord) models.GenerationJob {
	return models.GenerationJob{
		ID:     id,
		Status: models.JobStatusQueued,
		Stage:  models.StageQueued,
		Request: models.JobRequest{
			Obligations: obligations,
			Attempts:    1,
			Seed:        1,
			Repair:      true,
		},
	}
}

func TestGenerationWorkerSkipsTerminalAndMissingJobs(t *testing.T) {
	f := newTimetableFixture(t, timetable.DefaultRules(), TimetableServiceConfig{})
	f.store.put(models.GenerationJob{ID: "done", Status: models.JobStatusFinished})

	require.NoError(t, f.worker.Handle(context.Background(), jobs.Job{ID: "done"}))
	require.NoError(t, f.worker.Handle(context.Background(), jobs.Job{ID: "ghost"}))
	assert.Empty(t, f.store.stages)
}

func TestGenerationWorkerEmptyRequestIsPermanent(t *testing.T) {
	f := newTimetableFixture(t, timetable.DefaultRules(), TimetableServiceConfig{})
	f.store.put(queuedJob("empty"))

	err := f.worker.Handle(context.Background(), jobs.Job{ID: "empty"})

	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.True(t, errors.Is(err, timetable.ErrInvalidObligation))
}

func TestGenerationWorkerRequeuesTransientFailure(t *testing.T) {
	f := newTimetableFixture(t, timetable.DefaultRules(), TimetableServiceConfig{})
	f.store.put(queuedJob("j1", models.ObligationRecord{Teacher: "T1", Class: "1A", Subject: "MAT", Hours: 1}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.Handle(ctx, jobs.Job{ID: "j1"})

	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))
	job, getErr := f.store.GetByID(context.Background(), "j1")
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, models.StageQueued, job.Stage)
	assert.Equal(t, 0, job.Progress)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "context canceled")
}

func TestGenerationWorkerGiveUpMarksFailed(t *testing.T) {
	f := newTimetableFixture(t, timetable.DefaultRules(), TimetableServiceConfig{})
	f.store.put(queuedJob("j2"))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	f.worker.GiveUp(cancelled, jobs.Job{ID: "j2"}, errors.New("shutdown"))
	job, _ := f.store.GetByID(context.Background(), "j2")
	assert.Equal(t, models.JobStatusQueued, job.Status)

	f.worker.GiveUp(context.Background(), jobs.Job{ID: "j2"}, errors.New("engine exploded"))
	job, _ = f.store.GetByID(context.Background(), "j2")
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StageDone, job.Stage)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Error)
	assert.Equal(t, "engine exploded", *job.Error)
	require.NotNil(t, job.FinishedAt)
}
