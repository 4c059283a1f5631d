package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesMaxHoursAllowed(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, rules.Validate())

	assert.Equal(t, 7, rules.MaxHoursAllowed("MAR", "1A"))
	assert.Equal(t, 7, rules.MaxHoursAllowed("GIO", "1A"))
	assert.Equal(t, 7, rules.MaxHoursAllowed("LUN", "3E"))
	assert.Equal(t, 6, rules.MaxHoursAllowed("LUN", "1A"))
	assert.Equal(t, 6, rules.MaxHoursAllowed("MER", "3E"))
	assert.Equal(t, 7, rules.MaxHoursAllowed("VEN", "3L"))
	assert.Equal(t, 6, rules.MaxHoursAllowed("VEN", "2L"))
}

func TestRulesLastHourAllowList(t *testing.T) {
	rules := DefaultRules()
	classes := []string{"1A", "1L", "2I", "3E", "3L"}

	assert.Equal(t, []string{"3L"}, rules.AllowedClassesAt(classes, slot("VEN14")))
	assert.Equal(t, []string{"1L", "2I", "3L"}, rules.AllowedClassesAt(classes, slot("MER14")))
	assert.Equal(t, classes, rules.AllowedClassesAt(classes, slot("MAR14")))
	assert.Equal(t, classes, rules.AllowedClassesAt(classes, slot("VEN13")))

	blocked := rules.NotAllowed(classes, slot("VEN14"))
	assert.Len(t, blocked, 4)
	assert.NotContains(t, blocked, "3L")
	assert.Empty(t, rules.NotAllowed(classes, slot("GIO14")))
}

func TestRulesValidate(t *testing.T) {
	rules := DefaultRules()
	rules.ExtendedDailyHoursClass = 5
	assert.Error(t, rules.Validate())

	rules = DefaultRules()
	rules.LastHourAllowed["SAB"] = []string{"1L"}
	assert.Error(t, rules.Validate())

	rules = DefaultRules()
	rules.MaxDailyHoursTeacher = 0
	assert.Error(t, rules.Validate())
}

func TestIsSlotAvailableRejectsRestrictedLastHour(t *testing.T) {
	v := NewValidator(DefaultRules())
	s := NewSchedule(DefaultCalendar())

	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "2L", slot("VEN14")))
	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "1A", slot("VEN14")))
	assert.True(t, v.IsSlotAvailable(s, "ROSSI", "3L", slot("VEN14")))
	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "1A", slot("LUN14")))
	assert.True(t, v.IsSlotAvailable(s, "ROSSI", "1A", slot("GIO14")))
}

func TestIsSlotAvailableExclusivity(t *testing.T) {
	v := NewValidator(DefaultRules())
	s := NewSchedule(DefaultCalendar())
	place(s, "LUN8", "1L", "ROSSI")

	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "2L", slot("LUN8")))
	assert.False(t, v.IsSlotAvailable(s, "VERDI", "1L", slot("LUN8")))
	assert.True(t, v.IsSlotAvailable(s, "VERDI", "2L", slot("LUN8")))
	assert.False(t, v.IsSlotAvailable(s, "VERDI", "2L", TimeSlot{Day: "SAB", Hour: 8}))
}

func TestIsSlotAvailableDailyCaps(t *testing.T) {
	v := NewValidator(DefaultRules())

	t.Run("teacher", func(t *testing.T) {
		s := NewSchedule(DefaultCalendar())
		for i, col := range []string{"MAR8", "MAR9", "MAR10", "MAR11", "MAR12"} {
			place(s, col, []string{"1A", "1B", "1C", "1D", "1E"}[i], "ROSSI")
		}
		assert.False(t, v.IsSlotAvailable(s, "ROSSI", "1F", slot("MAR13")))
		assert.True(t, v.IsSlotAvailable(s, "ROSSI", "1F", slot("GIO13")))
	})

	t.Run("teacher and class", func(t *testing.T) {
		s := NewSchedule(DefaultCalendar())
		place(s, "MAR8", "1A", "ROSSI")
		place(s, "MAR9", "1A", "ROSSI")
		assert.False(t, v.IsSlotAvailable(s, "ROSSI", "1A", slot("MAR10")))
		assert.True(t, v.IsSlotAvailable(s, "ROSSI", "1B", slot("MAR10")))
		assert.True(t, v.IsSlotAvailable(s, "VERDI", "1A", slot("MAR10")))
	})

	t.Run("class", func(t *testing.T) {
		s := NewSchedule(DefaultCalendar())
		for i, col := range []string{"LUN8", "LUN9", "LUN10", "LUN11", "LUN12", "LUN13"} {
			place(s, col, "1L", []string{"T1", "T2", "T3", "T4", "T5", "T6"}[i])
		}
		assert.True(t, v.IsSlotAvailable(s, "T7", "1L", slot("LUN14")))

		for i, col := range []string{"MAR8", "MAR9", "MAR10", "MAR11", "MAR12", "MAR13", "MAR14"} {
			place(s, col, "1A", []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7"}[i])
		}
		s.Remove(slot("MAR14"), func(p Placement) bool { return p.Class == "1A" })
		assert.True(t, v.IsSlotAvailable(s, "T8", "1A", slot("MAR14")))
	})

	t.Run("class with small cap", func(t *testing.T) {
		rules := smallRules([]string{"LUN"}, []int{8, 9, 10})
		rules.MaxDailyHoursClass = 2
		rules.ExtendedDailyHoursClass = 2
		v := NewValidator(rules)
		s := NewSchedule(rules.Calendar)
		place(s, "LUN8", "1A", "T1")
		place(s, "LUN9", "1A", "T2")
		assert.False(t, v.IsSlotAvailable(s, "T3", "1A", slot("LUN10")))
	})
}

func TestWouldSlotWorkIfFree(t *testing.T) {
	v := NewValidator(DefaultRules())
	s := NewSchedule(DefaultCalendar())
	place(s, "LUN8", "2L", "ROSSI")
	place(s, "LUN9", "1L", "ROSSI")
	place(s, "LUN10", "1L", "ROSSI")

	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "1L", slot("LUN8")))
	assert.False(t, v.WouldSlotWorkIfFree(s, "ROSSI", "1L", slot("LUN8")))

	place(s, "LUN11", "2L", "VERDI")
	assert.False(t, v.IsSlotAvailable(s, "ROSSI", "2L", slot("LUN11")))
	assert.True(t, v.WouldSlotWorkIfFree(s, "ROSSI", "2L", slot("LUN11")))
	assert.False(t, v.WouldSlotWorkIfFree(s, "ROSSI", "2L", slot("VEN14")))
}

func TestCanTeacherTeach(t *testing.T) {
	v := NewValidator(DefaultRules())
	s := NewSchedule(DefaultCalendar())
	place(s, "GIO8", "1A", "ROSSI")
	place(s, "GIO9", "1A", "ROSSI")

	assert.False(t, v.CanTeacherTeach(s, "ROSSI", "1B", slot("GIO8")))
	assert.False(t, v.CanTeacherTeach(s, "ROSSI", "1A", slot("GIO10")))
	assert.True(t, v.CanTeacherTeach(s, "ROSSI", "1B", slot("GIO10")))
}

func TestSanityCheckFindsEveryKind(t *testing.T) {
	v := NewValidator(DefaultRules())

	s := NewSchedule(DefaultCalendar())
	assert.Empty(t, v.SanityCheck(s))

	place(s, "LUN8", "1A", "ROSSI")
	place(s, "LUN8", "1B", "ROSSI")
	place(s, "LUN9", "1A", "VERDI")
	place(s, "LUN9", "1A", "BIANCHI")
	place(s, "VEN14", "1A", "NERI")
	for _, col := range []string{"MAR8", "MAR9", "MAR10"} {
		place(s, col, "2A", "GIALLI")
	}
	for _, col := range []string{"GIO8", "GIO9", "GIO10", "GIO11", "GIO12", "GIO13"} {
		place(s, col, col, "BLU")
	}
	for i, col := range []string{"MER8", "MER9", "MER10", "MER11", "MER12", "MER13", "MER14"} {
		place(s, col, "5A", []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7"}[i])
	}

	kinds := make(map[ViolationKind]int)
	for _, violation := range v.SanityCheck(s) {
		kinds[violation.Kind]++
		assert.NotEmpty(t, violation.String())
	}
	assert.Equal(t, 1, kinds[ViolationDoubleBookedTeacher])
	assert.Equal(t, 1, kinds[ViolationDoubleBookedClass])
	assert.Equal(t, 2, kinds[ViolationLastHourRestricted])
	assert.Equal(t, 1, kinds[ViolationTeacherClassDailyCap])
	assert.Equal(t, 1, kinds[ViolationTeacherDailyCap])
	assert.Equal(t, 1, kinds[ViolationClassDailyCap])
}

func TestIsSwapFeasible(t *testing.T) {
	v := NewValidator(DefaultRules())
	s := NewSchedule(DefaultCalendar())
	place(s, "LUN8", "1A", "ROSSI")
	place(s, "LUN9", "2L", "ROSSI")
	before := s.Clone()

	assert.True(t, v.IsSwapFeasible(s, "ROSSI", slot("LUN8"), slot("LUN9")))
	assert.False(t, v.IsSwapFeasible(s, "ROSSI", slot("LUN8"), slot("LUN14")))
	assert.True(t, v.IsSwapFeasible(s, "ROSSI", slot("LUN9"), slot("LUN14")))
	assert.False(t, v.IsSwapFeasible(s, "VERDI", slot("LUN8"), slot("LUN9")))
	assert.True(t, s.Equal(before))
}
