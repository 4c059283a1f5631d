package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

func TestMetricsSnapshotTracksGenerationAndJobs(t *testing.T) {
	m := NewMetricsService()

	m.ObserveGeneration("job", &timetable.GenerationResult{HoursRequired: 10, HoursPlaced: 8}, time.Second)
	m.ObserveGeneration("sync", &timetable.GenerationResult{HoursRequired: 4, HoursPlaced: 4, Success: true}, time.Second)
	m.ObserveJob(models.JobStatusFinished)
	m.ObserveJob(models.JobStatusFailed)
	m.ObserveJob(models.JobStatusFailed)

	depth := 3
	m.TrackQueueDepth(func() int { return depth })

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.GenerationsTotal)
	assert.Equal(t, uint64(12), snap.HoursPlaced)
	assert.Equal(t, uint64(2), snap.HoursUnplaced)
	assert.Equal(t, uint64(1), snap.JobsFinished)
	assert.Equal(t, uint64(2), snap.JobsFailed)
	assert.Equal(t, 3, snap.QueueDepth)

	assert.InDelta(t, 2, testutil.ToFloat64(m.jobsTotal.WithLabelValues("failed")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.hoursFailed), 1e-9)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["oraccio_job_queue_depth"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveJob(models.JobStatusFinished)
	m.TrackQueueDepth(func() int { return 1 })
	m.RecordCacheOperation(true, time.Millisecond)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
