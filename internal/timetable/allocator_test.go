package timetable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAllocator(rules Rules) *Allocator {
	return NewAllocator(NewValidator(rules), CanonicalOrder(rules.Calendar), zap.NewNop())
}

func TestAllocatorTrivialFeasible(t *testing.T) {
	rules := DefaultRules()
	s := NewSchedule(rules.Calendar)

	report := newTestAllocator(rules).Allocate(s, []Obligation{{Teacher: "T1", Class: "C1", Subject: "S1", Hours: 3}})

	assert.Equal(t, 3, report.HoursPlaced)
	assert.Equal(t, 3, report.HoursRequired)
	assert.Empty(t, report.Failed)
	assert.InDelta(t, 1.0, report.SuccessRate, 1e-9)

	lessons := s.Query(nil).Collect()
	require.Len(t, lessons, 3)
	assert.Equal(t, slot("LUN8"), lessons[0].Slot)
	assert.Equal(t, slot("LUN9"), lessons[1].Slot)
	assert.Equal(t, slot("MAR8"), lessons[2].Slot)
	assert.Empty(t, NewValidator(rules).SanityCheck(s))
}

func TestAllocatorScore(t *testing.T) {
	rules := DefaultRules()
	a := newTestAllocator(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "MER10", "1L", "T1")
	place(s, "MER12", "2L", "T1")

	assert.Equal(t, 10, a.Score(s, "T1", slot("MER8")))
	assert.Equal(t, 15, a.Score(s, "T1", slot("MER9")))
	assert.Equal(t, 20, a.Score(s, "T1", slot("MER11")))
	assert.Equal(t, 5, a.Score(s, "T1", slot("MER13")))
	assert.Equal(t, 0, a.Score(s, "T1", slot("MER14")))
	assert.Equal(t, 10, a.Score(s, "T2", slot("MER11")))
}

func TestAllocatorPrioritizesTightestObligations(t *testing.T) {
	rules := DefaultRules()
	a := newTestAllocator(rules)
	s := NewSchedule(rules.Calendar)

	demands := a.Prioritize(s, []Obligation{
		{Teacher: "T1", Class: "1A", Subject: "S", Hours: 1},
		{Teacher: "T2", Class: "1A", Subject: "S", Hours: 4},
		{Teacher: "T3", Class: "3L", Subject: "S", Hours: 4},
		{Teacher: "T4", Class: "1A", Subject: "S", Hours: 1},
	})

	require.Len(t, demands, 4)
	assert.Equal(t, "T2", demands[0].Obligation.Teacher)
	assert.Equal(t, 32, demands[0].Available)
	assert.Equal(t, "T3", demands[1].Obligation.Teacher)
	assert.Equal(t, 35, demands[1].Available)
	assert.Equal(t, "T1", demands[2].Obligation.Teacher)
	assert.Equal(t, "T4", demands[3].Obligation.Teacher)
}

func TestAllocatorNoAvailableSlotRanksFirst(t *testing.T) {
	rules := DefaultRules()
	a := newTestAllocator(rules)
	s := NewSchedule(rules.Calendar)
	for _, col := range rules.Calendar.Columns() {
		place(s, col, "X", "BUSY")
	}

	demands := a.Prioritize(s, []Obligation{
		{Teacher: "T1", Class: "1A", Subject: "S", Hours: 1},
		{Teacher: "BUSY", Class: "1A", Subject: "S", Hours: 1},
	})
	assert.Equal(t, "BUSY", demands[0].Obligation.Teacher)
	assert.True(t, math.IsInf(demands[0].Priority, 1))
}

func TestAllocatorRecordsShortfall(t *testing.T) {
	rules := DefaultRules()
	s := NewSchedule(rules.Calendar)

	report := newTestAllocator(rules).Allocate(s, []Obligation{{Teacher: "T1", Class: "1A", Subject: "MAT", Hours: 12}})

	assert.Equal(t, 10, report.HoursPlaced)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, FailedAssignment{Teacher: "T1", Class: "1A", Subject: "MAT", Remaining: 2, Allocated: 10}, report.Failed[0])
	assert.InDelta(t, 10.0/12.0, report.SuccessRate, 1e-9)
	for _, day := range rules.Calendar.Days {
		assert.Equal(t, 2, s.TeacherClassHoursOnDay("T1", "1A", day))
	}
}

func TestAllocatorHonoursScanOrder(t *testing.T) {
	rules := DefaultRules()
	order := ScanOrder{Days: []string{"VEN", "GIO", "MER", "MAR", "LUN"}, Hours: []int{11, 10, 9, 8, 12, 13, 14}}
	a := NewAllocator(NewValidator(rules), order, nil)
	s := NewSchedule(rules.Calendar)

	a.Allocate(s, []Obligation{{Teacher: "T1", Class: "1A", Subject: "S", Hours: 1}})

	lesson, ok := s.Query(nil).First()
	require.True(t, ok)
	assert.Equal(t, slot("VEN11"), lesson.Slot)
}
