package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/timetable"
)

func TestStageProgress(t *testing.T) {
	assert.Equal(t, 10, StageInitialization.Progress())
	assert.Equal(t, 20, StageDataLoading.Progress())
	assert.Equal(t, 30, StageAlgorithmStart.Progress())
	assert.Equal(t, 80, StagePostProcessing.Progress())
	assert.Equal(t, 95, StageFinalization.Progress())
	assert.Equal(t, 100, StageDone.Progress())
	assert.Equal(t, 0, StageQueued.Progress())
}

func TestJobRequestScanValue(t *testing.T) {
	req := JobRequest{
		Obligations: []ObligationRecord{{Teacher: "ROSSI", Class: "1A", Subject: "MAT", Hours: 4}},
		Attempts:    2,
		Seed:        9,
		Repair:      true,
	}
	raw, err := req.Value()
	require.NoError(t, err)

	var decoded JobRequest
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, req, decoded)
	assert.Equal(t, []timetable.Obligation{{Teacher: "ROSSI", Class: "1A", Subject: "MAT", Hours: 4}}, decoded.EngineObligations())

	require.NoError(t, decoded.Scan(nil))
	assert.Equal(t, JobRequest{}, decoded)
	assert.Error(t, decoded.Scan(42))
}

func TestJobResultKeepsColumnKeys(t *testing.T) {
	result := JobResult{
		TeacherView: timetable.TeacherView{
			"ROSSI": {timetable.TimeSlot{Day: "LUN", Hour: 8}: {Class: "1A", Subject: "MAT"}},
		},
	}
	raw, err := result.Value()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw.([]byte), &generic))
	assert.Contains(t, generic["teacher_view"].(map[string]any)["ROSSI"], "LUN8")

	var decoded JobResult
	require.NoError(t, decoded.Scan(string(raw.([]byte))))
	assert.Equal(t, "1A", decoded.TeacherView["ROSSI"][timetable.TimeSlot{Day: "LUN", Hour: 8}].Class)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusFinished.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, UserRole("TEACHER").Valid())
}
