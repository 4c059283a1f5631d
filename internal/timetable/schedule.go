package timetable

import (
	"sort"

	"github.com/samber/lo"
)

// Placement is one lesson occupying one slot.
type Placement struct {
	Class   string `json:"class"`
	Teacher string `json:"teacher"`
	Subject string `json:"subject"`
}

func (p Placement) less(other Placement) bool {
	if p.Class != other.Class {
		return p.Class < other.Class
	}
	if p.Teacher != other.Teacher {
		return p.Teacher < other.Teacher
	}
	return p.Subject < other.Subject
}

// Seq is a lazy, restartable sequence of slot placements. Iteration stops
// when yield returns false.
type Seq func(yield func(TimeSlot, Placement) bool)

// Collect drains the sequence.
func (q Seq) Collect() []SlotPlacement {
	var out []SlotPlacement
	q(func(slot TimeSlot, p Placement) bool {
		out = append(out, SlotPlacement{Slot: slot, Placement: p})
		return true
	})
	return out
}

// Count drains the sequence and returns its length.
func (q Seq) Count() int {
	n := 0
	q(func(TimeSlot, Placement) bool {
		n++
		return true
	})
	return n
}

// First returns the first element of the sequence.
func (q Seq) First() (SlotPlacement, bool) {
	var (
		found SlotPlacement
		ok    bool
	)
	q(func(slot TimeSlot, p Placement) bool {
		found = SlotPlacement{Slot: slot, Placement: p}
		ok = true
		return false
	})
	return found, ok
}

// SlotPlacement pairs a placement with its coordinate.
type SlotPlacement struct {
	Slot      TimeSlot  `json:"slot"`
	Placement Placement `json:"placement"`
}

// Schedule maps every slot of a calendar to the placements it holds. It
// never checks invariants; callers go through the Validator first.
type Schedule struct {
	calendar Calendar
	cells    map[TimeSlot][]Placement
}

// NewSchedule creates an empty schedule covering every slot of cal.
func NewSchedule(cal Calendar) *Schedule {
	cells := make(map[TimeSlot][]Placement, len(cal.Days)*len(cal.Hours))
	for _, slot := range cal.Slots() {
		cells[slot] = nil
	}
	return &Schedule{calendar: cal, cells: cells}
}

func (s *Schedule) Calendar() Calendar {
	return s.calendar
}

// Place appends p to slot, keeping the cell in canonical order.
func (s *Schedule) Place(slot TimeSlot, p Placement) {
	cell := s.cells[slot]
	idx := sort.Search(len(cell), func(i int) bool { return p.less(cell[i]) })
	cell = append(cell, Placement{})
	copy(cell[idx+1:], cell[idx:])
	cell[idx] = p
	s.cells[slot] = cell
}

// Remove deletes the first placement in slot matching match.
func (s *Schedule) Remove(slot TimeSlot, match func(Placement) bool) (Placement, bool) {
	cell := s.cells[slot]
	for i, p := range cell {
		if match(p) {
			s.cells[slot] = append(cell[:i:i], cell[i+1:]...)
			return p, true
		}
	}
	return Placement{}, false
}

// At returns a copy of the placements in slot.
func (s *Schedule) At(slot TimeSlot) []Placement {
	return append([]Placement(nil), s.cells[slot]...)
}

// Query yields every (slot, placement) pair accepted by match, in calendar
// order. A nil match accepts everything.
func (s *Schedule) Query(match func(TimeSlot, Placement) bool) Seq {
	return func(yield func(TimeSlot, Placement) bool) {
		for _, slot := range s.calendar.Slots() {
			for _, p := range s.cells[slot] {
				if match != nil && !match(slot, p) {
					continue
				}
				if !yield(slot, p) {
					return
				}
			}
		}
	}
}

// Len is the total number of placements.
func (s *Schedule) Len() int {
	n := 0
	for _, cell := range s.cells {
		n += len(cell)
	}
	return n
}

func (s *Schedule) TeacherAt(teacher string, slot TimeSlot) (Placement, bool) {
	for _, p := range s.cells[slot] {
		if p.Teacher == teacher {
			return p, true
		}
	}
	return Placement{}, false
}

func (s *Schedule) ClassAt(class string, slot TimeSlot) (Placement, bool) {
	for _, p := range s.cells[slot] {
		if p.Class == class {
			return p, true
		}
	}
	return Placement{}, false
}

func (s *Schedule) IsTeacherFree(teacher string, slot TimeSlot) bool {
	_, busy := s.TeacherAt(teacher, slot)
	return !busy
}

func (s *Schedule) TeacherHoursOnDay(teacher, day string) int {
	return s.countOnDay(day, func(p Placement) bool { return p.Teacher == teacher })
}

func (s *Schedule) ClassHoursOnDay(class, day string) int {
	return s.countOnDay(day, func(p Placement) bool { return p.Class == class })
}

func (s *Schedule) TeacherClassHoursOnDay(teacher, class, day string) int {
	return s.countOnDay(day, func(p Placement) bool { return p.Teacher == teacher && p.Class == class })
}

func (s *Schedule) countOnDay(day string, match func(Placement) bool) int {
	n := 0
	for _, hour := range s.calendar.Hours {
		for _, p := range s.cells[TimeSlot{Day: day, Hour: hour}] {
			if match(p) {
				n++
			}
		}
	}
	return n
}

// TeacherLessonsOnDay lists what teacher teaches on day, by hour.
func (s *Schedule) TeacherLessonsOnDay(teacher, day string) []SlotPlacement {
	return s.Query(func(slot TimeSlot, p Placement) bool {
		return slot.Day == day && p.Teacher == teacher
	}).Collect()
}

// FreeSlots returns every slot where teacher has no lesson, in calendar order.
func (s *Schedule) FreeSlots(teacher string) []TimeSlot {
	return lo.Filter(s.calendar.Slots(), func(slot TimeSlot, _ int) bool {
		return s.IsTeacherFree(teacher, slot)
	})
}

// Teachers returns the sorted set of teachers with at least one placement.
func (s *Schedule) Teachers() []string {
	return s.distinct(func(p Placement) string { return p.Teacher })
}

// Classes returns the sorted set of classes with at least one placement.
func (s *Schedule) Classes() []string {
	return s.distinct(func(p Placement) string { return p.Class })
}

func (s *Schedule) distinct(key func(Placement) string) []string {
	var values []string
	for _, cell := range s.cells {
		for _, p := range cell {
			values = append(values, key(p))
		}
	}
	values = lo.Uniq(values)
	sort.Strings(values)
	return values
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	cells := make(map[TimeSlot][]Placement, len(s.cells))
	for slot, cell := range s.cells {
		cells[slot] = append([]Placement(nil), cell...)
	}
	return &Schedule{calendar: s.calendar, cells: cells}
}

// Equal compares two schedules placement for placement.
func (s *Schedule) Equal(other *Schedule) bool {
	if other == nil || len(s.cells) != len(other.cells) {
		return false
	}
	for slot, cell := range s.cells {
		theirs, ok := other.cells[slot]
		if !ok || len(theirs) != len(cell) {
			return false
		}
		for i := range cell {
			if cell[i] != theirs[i] {
				return false
			}
		}
	}
	return true
}
