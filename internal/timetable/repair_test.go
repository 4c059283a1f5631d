package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepair(rules Rules) (*RepairEngine, *Validator) {
	v := NewValidator(rules)
	return NewRepairEngine(v, zap.NewNop()), v
}

func failed(teacher, class string, remaining int) FailedAssignment {
	return FailedAssignment{Teacher: teacher, Class: class, Subject: "S", Remaining: remaining}
}

func TestMissingPairsFollowsAllowListAndLedger(t *testing.T) {
	rules := DefaultRules()
	e, _ := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	for _, col := range rules.Calendar.Columns() {
		place(s, col, "1A", "T1")
	}
	ledger := newFailedLedger([]FailedAssignment{failed("T2", "1A", 1), failed("T3", "3L", 1)})

	pairs := e.MissingPairs(s, ledger, []string{"1A", "2A", "3L"})

	assert.Len(t, pairs, 35)
	for _, pair := range pairs {
		assert.Equal(t, "3L", pair.Class)
	}
}

func TestRepairDirectPlacement(t *testing.T) {
	rules := DefaultRules()
	e, v := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "C1", 1)})

	report, err := e.Repair(s, ledger, []string{"C1"})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Placed)
	assert.Equal(t, 1, report.Strategies[StrategyDirect])
	assert.Equal(t, 1, report.Passes)
	assert.False(t, report.Exhausted)
	assert.Empty(t, report.History)
	assert.Zero(t, ledger.Len())
	p, ok := s.TeacherAt("T1", slot("LUN8"))
	require.True(t, ok)
	assert.Equal(t, "C1", p.Class)
	assert.Empty(t, v.SanityCheck(s))
}

func TestRepairBusyAtSlot(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9})
	e, v := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "LUN8", "A", "T1")
	place(s, "LUN9", "A", "T2")
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "B", 1)})

	report, err := e.Repair(s, ledger, []string{"A", "B"})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Strategies[StrategyBusyAtSlot])
	assert.Equal(t, []Swap{
		{Teacher: "T2", From: slot("LUN9"), To: slot("LUN8")},
		{Teacher: "T1", From: slot("LUN8"), To: slot("LUN9")},
	}, report.History)

	p, _ := s.TeacherAt("T1", slot("LUN8"))
	assert.Equal(t, "B", p.Class)
	p, _ = s.TeacherAt("T1", slot("LUN9"))
	assert.Equal(t, "A", p.Class)
	p, _ = s.TeacherAt("T2", slot("LUN8"))
	assert.Equal(t, "A", p.Class)
	assert.Empty(t, v.SanityCheck(s))
	assert.Zero(t, ledger.Len())
}

func TestRepairTeacherClassCapExhausted(t *testing.T) {
	rules := smallRules([]string{"LUN", "MAR"}, []int{8, 9, 10})
	e, v := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "LUN8", "A", "T1")
	place(s, "LUN9", "A", "T1")
	place(s, "MAR8", "A", "T2")
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "A", 1)})

	report, err := e.Repair(s, ledger, []string{"A"})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Strategies[StrategyTeacherClassCap])
	require.Len(t, report.Placements, 1)
	assert.Equal(t, slot("LUN10"), report.Placements[0].Slot)
	assert.Equal(t, 2, s.TeacherClassHoursOnDay("T1", "A", "LUN"))
	assert.Equal(t, 1, s.TeacherClassHoursOnDay("T1", "A", "MAR"))
	assert.Equal(t, 1, s.TeacherClassHoursOnDay("T2", "A", "LUN"))
	assert.Empty(t, v.SanityCheck(s))
}

func TestRepairFullyBooked(t *testing.T) {
	rules := smallRules([]string{"LUN", "MAR"}, []int{8, 9, 10})
	rules.MaxDailyHoursTeacher = 2
	e, v := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "LUN8", "A", "T1")
	place(s, "LUN8", "C", "T3")
	place(s, "LUN9", "B", "T1")
	place(s, "LUN9", "C", "T4")
	place(s, "MAR8", "A", "T2")
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "C", 1)})

	report, err := e.Repair(s, ledger, []string{"A", "B", "C"})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Strategies[StrategyFullyBooked])
	p, ok := s.TeacherAt("T1", slot("LUN10"))
	require.True(t, ok)
	assert.Equal(t, "C", p.Class)
	p, _ = s.TeacherAt("T1", slot("MAR8"))
	assert.Equal(t, "A", p.Class)
	assert.Equal(t, 2, s.TeacherHoursOnDay("T1", "LUN"))
	assert.Empty(t, v.SanityCheck(s))
}

func TestRepairDefersWhenNothingWorks(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8})
	e, _ := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "LUN8", "B", "T1")
	before := s.Clone()
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "A", 1)})

	report, err := e.Repair(s, ledger, []string{"A", "B"})

	require.NoError(t, err)
	assert.True(t, report.Exhausted)
	assert.Equal(t, 1, report.Passes)
	assert.Zero(t, report.Placed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeDeferred, report.Results[0].Outcome)
	require.NotNil(t, report.Results[0].Deferred)
	assert.Equal(t, "T1", report.Results[0].Deferred.Teacher)
	assert.True(t, s.Equal(before))
	assert.Equal(t, 1, ledger.Remaining())
}

func TestRepairSanityFailureIsFatal(t *testing.T) {
	rules := DefaultRules()
	e, _ := newTestRepair(rules)
	s := NewSchedule(rules.Calendar)
	place(s, "GIO9", "Z", "X1")
	place(s, "GIO9", "Z", "X2")
	ledger := newFailedLedger([]FailedAssignment{failed("T1", "C1", 3)})

	report, err := e.Repair(s, ledger, []string{"C1", "Z"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	var invariant *InvariantError
	require.True(t, errors.As(err, &invariant))
	assert.Equal(t, ViolationDoubleBookedClass, invariant.Violations[0].Kind)

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeViolated, report.Results[0].Outcome)
	assert.Equal(t, 1, report.Placed)
	assert.Equal(t, 2, ledger.Remaining())
}

func TestFailedLedgerRecord(t *testing.T) {
	ledger := newFailedLedger([]FailedAssignment{failed("T2", "A", 2), failed("T1", "A", 1), failed("T1", "B", 1)})

	rows := ledger.ForClass("A")
	require.Len(t, rows, 2)
	assert.Equal(t, "T1", rows[0].Teacher)

	require.True(t, ledger.Record(ObligationKey{Teacher: "T2", Class: "A", Subject: "S"}, 1))
	assert.Equal(t, 3, ledger.Remaining())
	require.True(t, ledger.Record(ObligationKey{Teacher: "T1", Class: "A", Subject: "S"}, 1))
	assert.Equal(t, 2, ledger.Len())
	assert.False(t, ledger.Record(ObligationKey{Teacher: "T9", Class: "A", Subject: "S"}, 1))
	assert.False(t, ledger.HasClass("C"))
	assert.True(t, ledger.HasClass("B"))
}
