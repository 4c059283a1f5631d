package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllowList(t *testing.T) {
	got, err := ParseAllowList("LUN:3E|1L ; VEN:3L;MER:")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"LUN": {"3E", "1L"},
		"VEN": {"3L"},
		"MER": {},
	}, got)

	empty, err := ParseAllowList("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseAllowList("LUN3E")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"LUN", "MAR", "MER", "GIO", "VEN"}, cfg.Timetable.Days)
	assert.Equal(t, []int{8, 9, 10, 11, 12, 13, 14}, cfg.Timetable.Hours)
	assert.Equal(t, 5, cfg.Timetable.MaxDailyHoursTeacher)
	assert.Equal(t, []string{"3L"}, cfg.Timetable.LastHourAllowed["VEN"])
	assert.Equal(t, 2*time.Second, cfg.Jobs.RetryDelay)
	assert.Equal(t, "@every 1h", cfg.Exports.CleanupSchedule)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TIMETABLE_HOURS", "8,9,10")
	t.Setenv("TIMETABLE_MAX_HOLES_PER_DAY", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 10}, cfg.Timetable.Hours)
	assert.Equal(t, 1, cfg.Timetable.MaxHolesPerDay)

	t.Setenv("TIMETABLE_HOURS", "8,nine")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}
