package timetable

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// ViolationKind names the invariant a Violation breaks.
type ViolationKind string

const (
	ViolationDoubleBookedTeacher  ViolationKind = "double_booked_teacher"
	ViolationDoubleBookedClass    ViolationKind = "double_booked_class"
	ViolationTeacherDailyCap      ViolationKind = "teacher_daily_cap"
	ViolationClassDailyCap        ViolationKind = "class_daily_cap"
	ViolationTeacherClassDailyCap ViolationKind = "teacher_class_daily_cap"
	ViolationLastHourRestricted   ViolationKind = "last_hour_restricted"
)

// Violation describes one broken invariant. Slot is only set for
// slot-level kinds; Day is always set.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Slot    *TimeSlot     `json:"slot,omitempty"`
	Day     string        `json:"day"`
	Teacher string        `json:"teacher,omitempty"`
	Class   string        `json:"class,omitempty"`
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
}

func (v Violation) String() string {
	where := v.Day
	if v.Slot != nil {
		where = v.Slot.Column()
	}
	switch v.Kind {
	case ViolationDoubleBookedTeacher:
		return fmt.Sprintf("teacher %s booked %d times at %s", v.Teacher, v.Count, where)
	case ViolationDoubleBookedClass:
		return fmt.Sprintf("class %s booked %d times at %s", v.Class, v.Count, where)
	case ViolationTeacherDailyCap:
		return fmt.Sprintf("teacher %s has %d hours on %s (max %d)", v.Teacher, v.Count, where, v.Limit)
	case ViolationClassDailyCap:
		return fmt.Sprintf("class %s has %d hours on %s (max %d)", v.Class, v.Count, where, v.Limit)
	case ViolationTeacherClassDailyCap:
		return fmt.Sprintf("teacher %s has %d hours with %s on %s (max %d)", v.Teacher, v.Count, v.Class, where, v.Limit)
	case ViolationLastHourRestricted:
		return fmt.Sprintf("class %s not allowed at %s", v.Class, where)
	default:
		return fmt.Sprintf("%s at %s", v.Kind, where)
	}
}

// Validator answers legality questions against a schedule. It holds no
// state besides its rules and never mutates the schedule.
type Validator struct {
	rules Rules
}

func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

func (v *Validator) Rules() Rules {
	return v.rules
}

// IsSlotAvailable reports whether teacher can take class at slot given the
// current state of s.
func (v *Validator) IsSlotAvailable(s *Schedule, teacher, class string, slot TimeSlot) bool {
	if !v.rules.Calendar.Contains(slot) {
		return false
	}
	if !v.rules.ClassAllowedAt(class, slot) {
		return false
	}
	if _, busy := s.TeacherAt(teacher, slot); busy {
		return false
	}
	if _, busy := s.ClassAt(class, slot); busy {
		return false
	}
	if s.TeacherHoursOnDay(teacher, slot.Day) >= v.rules.MaxDailyHoursTeacher {
		return false
	}
	if s.ClassHoursOnDay(class, slot.Day) >= v.rules.MaxHoursAllowed(slot.Day, class) {
		return false
	}
	if s.TeacherClassHoursOnDay(teacher, class, slot.Day) >= v.rules.MaxDailyHoursTeacherForClass {
		return false
	}
	return true
}

// WouldSlotWorkIfFree runs the IsSlotAvailable checks as if the lessons
// that teacher and class currently hold at slot were gone.
func (v *Validator) WouldSlotWorkIfFree(s *Schedule, teacher, class string, slot TimeSlot) bool {
	if !v.rules.Calendar.Contains(slot) {
		return false
	}
	if !v.rules.ClassAllowedAt(class, slot) {
		return false
	}

	teacherHours := s.TeacherHoursOnDay(teacher, slot.Day)
	classHours := s.ClassHoursOnDay(class, slot.Day)
	pairHours := s.TeacherClassHoursOnDay(teacher, class, slot.Day)
	for _, p := range s.cells[slot] {
		if p.Teacher != teacher && p.Class != class {
			continue
		}
		if p.Teacher == teacher {
			teacherHours--
		}
		if p.Class == class {
			classHours--
		}
		if p.Teacher == teacher && p.Class == class {
			pairHours--
		}
	}

	if teacherHours >= v.rules.MaxDailyHoursTeacher {
		return false
	}
	if classHours >= v.rules.MaxHoursAllowed(slot.Day, class) {
		return false
	}
	return pairHours < v.rules.MaxDailyHoursTeacherForClass
}

// CanTeacherTeach is the weaker check used while planning swaps: teacher is
// free at slot and below both teacher caps for that day.
func (v *Validator) CanTeacherTeach(s *Schedule, teacher, class string, slot TimeSlot) bool {
	if !s.IsTeacherFree(teacher, slot) {
		return false
	}
	if s.TeacherHoursOnDay(teacher, slot.Day) >= v.rules.MaxDailyHoursTeacher {
		return false
	}
	return s.TeacherClassHoursOnDay(teacher, class, slot.Day) < v.rules.MaxDailyHoursTeacherForClass
}

// SanityCheck re-verifies every invariant over the whole grid. The result
// is ordered by day, then slot-level findings before daily caps.
func (v *Validator) SanityCheck(s *Schedule) []Violation {
	var violations []Violation
	for _, day := range v.rules.Calendar.Days {
		teacherDay := make(map[string]int)
		classDay := make(map[string]int)
		pairDay := make(map[[2]string]int)

		for _, hour := range v.rules.Calendar.Hours {
			slot := TimeSlot{Day: day, Hour: hour}
			teachers := make(map[string]int)
			classes := make(map[string]int)
			for _, p := range s.cells[slot] {
				teachers[p.Teacher]++
				classes[p.Class]++
				teacherDay[p.Teacher]++
				classDay[p.Class]++
				pairDay[[2]string{p.Teacher, p.Class}]++
				if !v.rules.ClassAllowedAt(p.Class, slot) {
					violations = append(violations, Violation{
						Kind: ViolationLastHourRestricted, Slot: slotRef(slot), Day: day,
						Teacher: p.Teacher, Class: p.Class, Count: 1,
					})
				}
			}
			for _, teacher := range sortedKeys(teachers) {
				if n := teachers[teacher]; n > 1 {
					violations = append(violations, Violation{
						Kind: ViolationDoubleBookedTeacher, Slot: slotRef(slot), Day: day,
						Teacher: teacher, Count: n, Limit: 1,
					})
				}
			}
			for _, class := range sortedKeys(classes) {
				if n := classes[class]; n > 1 {
					violations = append(violations, Violation{
						Kind: ViolationDoubleBookedClass, Slot: slotRef(slot), Day: day,
						Class: class, Count: n, Limit: 1,
					})
				}
			}
		}

		for _, teacher := range sortedKeys(teacherDay) {
			if n := teacherDay[teacher]; n > v.rules.MaxDailyHoursTeacher {
				violations = append(violations, Violation{
					Kind: ViolationTeacherDailyCap, Day: day, Teacher: teacher,
					Count: n, Limit: v.rules.MaxDailyHoursTeacher,
				})
			}
		}
		for _, class := range sortedKeys(classDay) {
			limit := v.rules.MaxHoursAllowed(day, class)
			if n := classDay[class]; n > limit {
				violations = append(violations, Violation{
					Kind: ViolationClassDailyCap, Day: day, Class: class,
					Count: n, Limit: limit,
				})
			}
		}
		pairs := make([][2]string, 0, len(pairDay))
		for pair := range pairDay {
			pairs = append(pairs, pair)
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		for _, pair := range pairs {
			if n := pairDay[pair]; n > v.rules.MaxDailyHoursTeacherForClass {
				violations = append(violations, Violation{
					Kind: ViolationTeacherClassDailyCap, Day: day, Teacher: pair[0], Class: pair[1],
					Count: n, Limit: v.rules.MaxDailyHoursTeacherForClass,
				})
			}
		}
	}
	return violations
}

func slotRef(slot TimeSlot) *TimeSlot {
	return &slot
}

func sortedKeys(m map[string]int) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
