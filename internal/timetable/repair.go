package timetable

import (
	"go.uber.org/zap"
)

// Strategy names the way a missing lesson was placed.
type Strategy string

const (
	StrategyDirect          Strategy = "direct"
	StrategyBusyAtSlot      Strategy = "busy_at_slot"
	StrategyTeacherClassCap Strategy = "teacher_class_cap"
	StrategyFullyBooked     Strategy = "fully_booked"
)

// Outcome is the fate of one missing (slot, class) pair.
type Outcome string

const (
	OutcomePlaced   Outcome = "placed"
	OutcomeDeferred Outcome = "deferred"
	OutcomeViolated Outcome = "violated"
)

// MissingPair is a slot where class could sit but has no lesson.
type MissingPair struct {
	Slot  TimeSlot `json:"slot"`
	Class string   `json:"class"`
}

// PairResult records what happened to a missing pair.
type PairResult struct {
	Slot       TimeSlot          `json:"slot"`
	Class      string            `json:"class"`
	Outcome    Outcome           `json:"outcome"`
	Pass       int               `json:"pass"`
	Strategy   Strategy          `json:"strategy,omitempty"`
	Placement  *Placement        `json:"placement,omitempty"`
	Swaps      []Swap            `json:"swaps,omitempty"`
	Deferred   *FailedAssignment `json:"deferred,omitempty"`
	Violations []Violation       `json:"violations,omitempty"`
}

// RepairReport summarises a repair run.
type RepairReport struct {
	Passes     int              `json:"passes"`
	Placed     int              `json:"placed"`
	Strategies map[Strategy]int `json:"strategies"`
	History    []Swap           `json:"history"`
	Placements []SlotPlacement  `json:"placements"`
	Results    []PairResult     `json:"results"`
	Exhausted  bool             `json:"exhausted"`
}

// RepairEngine places failed hours by freeing slots through swaps.
type RepairEngine struct {
	validator  *Validator
	maxTryouts int
	logger     *zap.Logger
}

func NewRepairEngine(validator *Validator, logger *zap.Logger) *RepairEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairEngine{
		validator:  validator,
		maxTryouts: validator.rules.MaxTryouts,
		logger:     logger,
	}
}

// MissingPairs lists, slot by slot, the classes that may sit in the slot,
// have no lesson there and still have failed hours.
func (e *RepairEngine) MissingPairs(s *Schedule, ledger *failedLedger, classes []string) []MissingPair {
	var pairs []MissingPair
	for _, slot := range e.validator.rules.Calendar.Slots() {
		for _, class := range e.validator.rules.AllowedClassesAt(classes, slot) {
			if _, present := s.ClassAt(class, slot); present {
				continue
			}
			if !ledger.HasClass(class) {
				continue
			}
			pairs = append(pairs, MissingPair{Slot: slot, Class: class})
		}
	}
	return pairs
}

// Repair runs up to MaxTryouts passes over the missing pairs. An
// *InvariantError aborts the run; the schedule is left as it was when the
// check failed.
func (e *RepairEngine) Repair(s *Schedule, ledger *failedLedger, classes []string) (RepairReport, error) {
	report := RepairReport{Strategies: make(map[Strategy]int)}

	var last []PairResult
	for pass := 1; pass <= e.maxTryouts; pass++ {
		missing := e.MissingPairs(s, ledger, classes)
		if len(missing) == 0 {
			break
		}
		report.Passes = pass

		placedBefore := report.Placed
		results, err := e.runPass(s, ledger, missing, pass, &report)
		if err != nil {
			report.Results = append(report.Results, results...)
			return report, err
		}
		last = results
		if report.Placed == placedBefore {
			break
		}
	}

	remaining := e.MissingPairs(s, ledger, classes)
	report.Exhausted = len(remaining) > 0
	for _, result := range last {
		if result.Outcome != OutcomeDeferred {
			continue
		}
		if _, present := s.ClassAt(result.Class, result.Slot); present || !ledger.HasClass(result.Class) {
			continue
		}
		report.Results = append(report.Results, result)
	}

	e.logger.Info("repair finished",
		zap.Int("passes", report.Passes),
		zap.Int("placed", report.Placed),
		zap.Int("swaps", len(report.History)),
		zap.Int("remaining_pairs", len(remaining)),
		zap.Int("remaining_hours", ledger.Remaining()),
		zap.Bool("exhausted", report.Exhausted),
	)
	return report, nil
}

// runPass appends placed results to report directly and returns the
// deferred ones.
func (e *RepairEngine) runPass(s *Schedule, ledger *failedLedger, missing []MissingPair, pass int, report *RepairReport) ([]PairResult, error) {
	var deferred []PairResult
	for _, pair := range missing {
		if _, present := s.ClassAt(pair.Class, pair.Slot); present {
			continue
		}
		candidates := ledger.ForClass(pair.Class)
		if len(candidates) == 0 {
			continue
		}

		result, placed := e.placePair(s, pair, candidates)
		result.Pass = pass
		if !placed {
			first := candidates[0]
			result.Outcome = OutcomeDeferred
			result.Deferred = &first
			deferred = append(deferred, result)
			continue
		}

		ledger.Record(ObligationKey{Teacher: result.Placement.Teacher, Class: result.Placement.Class, Subject: result.Placement.Subject}, 1)
		report.Placed++
		report.Strategies[result.Strategy]++
		report.History = append(report.History, result.Swaps...)
		report.Placements = append(report.Placements, SlotPlacement{Slot: pair.Slot, Placement: *result.Placement})

		if violations := e.validator.SanityCheck(s); len(violations) > 0 {
			result.Outcome = OutcomeViolated
			result.Violations = violations
			report.Results = append(report.Results, result)
			e.logger.Error("sanity check failed after repair step",
				zap.String("slot", pair.Slot.Column()),
				zap.String("class", pair.Class),
				zap.String("strategy", string(result.Strategy)),
				zap.Int("violations", len(violations)),
			)
			return deferred, &InvariantError{Violations: violations}
		}

		result.Outcome = OutcomePlaced
		report.Results = append(report.Results, result)
		e.logger.Debug("missing lesson placed",
			zap.String("slot", pair.Slot.Column()),
			zap.String("class", pair.Class),
			zap.String("teacher", result.Placement.Teacher),
			zap.String("strategy", string(result.Strategy)),
			zap.Int("swaps", len(result.Swaps)),
		)
	}
	return deferred, nil
}

// placePair tries every candidate in order, escalating through the
// strategies for each. On success the lesson is already on the grid.
func (e *RepairEngine) placePair(s *Schedule, pair MissingPair, candidates []FailedAssignment) (PairResult, bool) {
	result := PairResult{Slot: pair.Slot, Class: pair.Class}
	for _, cand := range candidates {
		strategy, swaps, ok := e.free(s, cand.Teacher, pair.Class, pair.Slot)
		if !ok {
			continue
		}
		p := Placement{Class: pair.Class, Teacher: cand.Teacher, Subject: cand.Subject}
		s.Place(pair.Slot, p)
		result.Strategy = strategy
		result.Swaps = swaps
		result.Placement = &p
		return result, true
	}
	return result, false
}

// free makes slot legal for teacher and class, swapping as needed. The
// swaps it keeps are returned.
func (e *RepairEngine) free(s *Schedule, teacher, class string, slot TimeSlot) (Strategy, []Swap, bool) {
	rules := e.validator.rules

	if !s.IsTeacherFree(teacher, slot) {
		for _, plan := range e.busyAtSlotPlans(s, teacher, slot) {
			if e.tryPlan(s, plan, teacher, class, slot) {
				return StrategyBusyAtSlot, plan, true
			}
		}
		return "", nil, false
	}

	if e.validator.IsSlotAvailable(s, teacher, class, slot) {
		return StrategyDirect, nil, true
	}

	if s.TeacherClassHoursOnDay(teacher, class, slot.Day) >= rules.MaxDailyHoursTeacherForClass {
		for _, plan := range e.teacherClassCapPlans(s, teacher, class, slot) {
			if e.tryPlan(s, plan, teacher, class, slot) {
				return StrategyTeacherClassCap, plan, true
			}
		}
	}
	if s.TeacherHoursOnDay(teacher, slot.Day) >= rules.MaxDailyHoursTeacher {
		for _, plan := range e.fullyBookedPlans(s, teacher, slot) {
			if e.tryPlan(s, plan, teacher, class, slot) {
				return StrategyFullyBooked, plan, true
			}
		}
	}
	return "", nil, false
}

// busyAtSlotPlans: teacher teaches X at slot. Another teacher O teaching X
// at a slot where teacher is free takes teacher's place, and teacher takes
// O's old slot.
func (e *RepairEngine) busyAtSlotPlans(s *Schedule, teacher string, slot TimeSlot) [][]Swap {
	current, _ := s.TeacherAt(teacher, slot)
	x := current.Class

	var plans [][]Swap
	for _, other := range s.FreeSlots(teacher) {
		held, ok := s.ClassAt(x, other)
		if !ok || held.Teacher == teacher {
			continue
		}
		o := held.Teacher
		if !s.IsTeacherFree(o, slot) {
			continue
		}
		if other.Day != slot.Day && !e.validator.CanTeacherTeach(s, o, x, slot) {
			continue
		}
		if !e.validator.CanTeacherTeach(s, teacher, x, other) {
			continue
		}
		plans = append(plans, []Swap{
			{Teacher: o, From: other, To: slot},
			{Teacher: teacher, From: slot, To: other},
		})
	}
	return plans
}

// teacherClassCapPlans: teacher already has the daily maximum with class.
// One of those lessons is exchanged with another teacher's lesson of the
// same class on a different day.
func (e *RepairEngine) teacherClassCapPlans(s *Schedule, teacher, class string, slot TimeSlot) [][]Swap {
	var own []TimeSlot
	for _, lesson := range s.TeacherLessonsOnDay(teacher, slot.Day) {
		if lesson.Placement.Class == class {
			own = append(own, lesson.Slot)
		}
	}

	var plans [][]Swap
	for _, other := range s.FreeSlots(teacher) {
		if other.Day == slot.Day {
			continue
		}
		held, ok := s.ClassAt(class, other)
		if !ok {
			continue
		}
		o := held.Teacher
		for _, mine := range own {
			if !s.IsTeacherFree(o, mine) {
				continue
			}
			if !e.validator.CanTeacherTeach(s, o, class, mine) {
				continue
			}
			if !e.validator.CanTeacherTeach(s, teacher, class, other) {
				continue
			}
			plans = append(plans, []Swap{
				{Teacher: o, From: other, To: mine},
				{Teacher: teacher, From: mine, To: other},
			})
		}
	}
	return plans
}

// fullyBookedPlans: teacher is at the daily cap. Any of the day's lessons
// is traded for a lesson of the same class on another day.
func (e *RepairEngine) fullyBookedPlans(s *Schedule, teacher string, slot TimeSlot) [][]Swap {
	free := s.FreeSlots(teacher)

	var plans [][]Swap
	for _, lesson := range s.TeacherLessonsOnDay(teacher, slot.Day) {
		x := lesson.Placement.Class
		for _, other := range free {
			if other.Day == slot.Day {
				continue
			}
			held, ok := s.ClassAt(x, other)
			if !ok {
				continue
			}
			o := held.Teacher
			if !s.IsTeacherFree(o, lesson.Slot) {
				continue
			}
			if !e.validator.CanTeacherTeach(s, o, x, lesson.Slot) {
				continue
			}
			if !e.validator.CanTeacherTeach(s, teacher, x, other) {
				continue
			}
			plans = append(plans, []Swap{
				{Teacher: o, From: other, To: lesson.Slot},
				{Teacher: teacher, From: lesson.Slot, To: other},
			})
		}
	}
	return plans
}

// tryPlan applies plan and keeps it only if every moved lesson is legal and
// the missing lesson can then go into slot. Otherwise the plan is undone in
// reverse order.
func (e *RepairEngine) tryPlan(s *Schedule, plan []Swap, teacher, class string, slot TimeSlot) bool {
	applied := make([]Swap, 0, len(plan))
	undo := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			applied[i].Inverse().Apply(s)
		}
	}

	for _, sw := range plan {
		if !sw.Apply(s) {
			undo()
			return false
		}
		applied = append(applied, sw)
	}

	for _, sw := range plan {
		for _, at := range []TimeSlot{sw.From, sw.To} {
			if p, ok := s.TeacherAt(sw.Teacher, at); ok && !e.validator.IsPlacementLegal(s, at, p) {
				undo()
				return false
			}
		}
	}
	if !e.validator.IsSlotAvailable(s, teacher, class, slot) {
		undo()
		return false
	}
	return true
}
