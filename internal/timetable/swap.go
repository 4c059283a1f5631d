package timetable

// Swap records one teacher moving or exchanging lessons between two slots.
type Swap struct {
	Teacher string   `json:"teacher"`
	From    TimeSlot `json:"from"`
	To      TimeSlot `json:"to"`
}

// Inverse undoes sw when applied after it.
func (sw Swap) Inverse() Swap {
	return Swap{Teacher: sw.Teacher, From: sw.To, To: sw.From}
}

// SwapTeacherSlots exchanges what teacher teaches at a and b. When the
// teacher only teaches at one of the two slots the lesson moves to the
// other. It returns false, leaving s untouched, when the teacher is free at
// both. Applying the same swap twice restores s exactly.
func SwapTeacherSlots(s *Schedule, teacher string, a, b TimeSlot) bool {
	if a == b {
		_, busy := s.TeacherAt(teacher, a)
		return busy
	}
	byTeacher := func(p Placement) bool { return p.Teacher == teacher }
	first, hasFirst := s.Remove(a, byTeacher)
	second, hasSecond := s.Remove(b, byTeacher)
	if !hasFirst && !hasSecond {
		return false
	}
	if hasFirst {
		s.Place(b, first)
	}
	if hasSecond {
		s.Place(a, second)
	}
	return true
}

// Apply performs sw on s.
func (sw Swap) Apply(s *Schedule) bool {
	return SwapTeacherSlots(s, sw.Teacher, sw.From, sw.To)
}

// IsSwapFeasible reports whether swapping teacher between a and b would
// leave every lesson it moves legal. s is left unchanged.
func (v *Validator) IsSwapFeasible(s *Schedule, teacher string, a, b TimeSlot) bool {
	if !v.rules.Calendar.Contains(a) || !v.rules.Calendar.Contains(b) {
		return false
	}
	if !SwapTeacherSlots(s, teacher, a, b) {
		return false
	}
	defer SwapTeacherSlots(s, teacher, b, a)

	for _, slot := range []TimeSlot{a, b} {
		if p, ok := s.TeacherAt(teacher, slot); ok && !v.IsPlacementLegal(s, slot, p) {
			return false
		}
	}
	return true
}

// IsPlacementLegal checks the invariants that concern p, already placed at
// slot.
func (v *Validator) IsPlacementLegal(s *Schedule, slot TimeSlot, p Placement) bool {
	if !v.rules.ClassAllowedAt(p.Class, slot) {
		return false
	}
	teachers, classes := 0, 0
	for _, other := range s.cells[slot] {
		if other.Teacher == p.Teacher {
			teachers++
		}
		if other.Class == p.Class {
			classes++
		}
	}
	if teachers > 1 || classes > 1 {
		return false
	}
	if s.TeacherHoursOnDay(p.Teacher, slot.Day) > v.rules.MaxDailyHoursTeacher {
		return false
	}
	if s.ClassHoursOnDay(p.Class, slot.Day) > v.rules.MaxHoursAllowed(slot.Day, p.Class) {
		return false
	}
	return s.TeacherClassHoursOnDay(p.Teacher, p.Class, slot.Day) <= v.rules.MaxDailyHoursTeacherForClass
}
