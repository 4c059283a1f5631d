package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/config"
)

func TestRulesFromConfigDefaults(t *testing.T) {
	rules, err := RulesFromConfig(config.TimetableConfig{})
	require.NoError(t, err)
	assert.Equal(t, timetable.DefaultRules(), rules)
}

func TestRulesFromConfigOverrides(t *testing.T) {
	rules, err := RulesFromConfig(config.TimetableConfig{
		Days:                 []string{"LUN", "MAR"},
		Hours:                []int{8, 9, 10},
		MaxDailyHoursTeacher: 3,
		ExtendedDays:         []string{},
		LastHourAllowed:      map[string][]string{"MAR": {"1A"}},
		MaxHolesPerDay:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"LUN", "MAR"}, rules.Calendar.Days)
	assert.Equal(t, 10, rules.Calendar.LastHour())
	assert.Equal(t, 3, rules.MaxDailyHoursTeacher)
	assert.Empty(t, rules.ExtendedDays)
	assert.Equal(t, map[string][]string{"MAR": {"1A"}}, rules.LastHourAllowed)
	assert.Equal(t, 1, rules.MaxHolesPerDay)
	assert.Equal(t, 2, rules.MaxDailyHoursTeacherForClass)
}

func TestRulesFromConfigRejectsUnknownDay(t *testing.T) {
	_, err := RulesFromConfig(config.TimetableConfig{
		Days:         []string{"LUN"},
		ExtendedDays: []string{"GIO"},
	})
	assert.Error(t, err)
}

func TestAttemptsFromConfig(t *testing.T) {
	cfg := config.TimetableConfig{Attempts: 4, AttemptWorkers: 2, Seed: 1}
	assert.Equal(t, timetable.AttemptsConfig{Attempts: 4, Workers: 2, Seed: 1}, AttemptsFromConfig(cfg, 0, nil))

	seed := int64(99)
	assert.Equal(t, timetable.AttemptsConfig{Attempts: 8, Workers: 2, Seed: 99}, AttemptsFromConfig(cfg, 8, &seed))
	assert.Equal(t, 1, AttemptsFromConfig(config.TimetableConfig{}, 0, nil).Attempts)
}
