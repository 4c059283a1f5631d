package timetable

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Lesson is what a teacher holds in one slot.
type Lesson struct {
	Class   string `json:"class"`
	Subject string `json:"subject,omitempty"`
}

// TeacherGrid is the teacher × column view the resolver edits. A nil cell
// means the teacher is free. Unlike Schedule it can hold a class twice in
// one column, which is exactly what the resolver untangles.
type TeacherGrid struct {
	calendar Calendar
	columns  []string
	slots    map[string]TimeSlot
	rows     map[string]map[string]*Lesson
}

func NewTeacherGrid(cal Calendar) *TeacherGrid {
	slots := make(map[string]TimeSlot, len(cal.Days)*len(cal.Hours))
	for _, slot := range cal.Slots() {
		slots[slot.Column()] = slot
	}
	return &TeacherGrid{
		calendar: cal,
		columns:  cal.Columns(),
		slots:    slots,
		rows:     make(map[string]map[string]*Lesson),
	}
}

// GridFromSchedule builds the teacher view of s.
func GridFromSchedule(s *Schedule) *TeacherGrid {
	g := NewTeacherGrid(s.Calendar())
	s.Query(nil)(func(slot TimeSlot, p Placement) bool {
		g.AddTeacher(p.Teacher)
		if g.rows[p.Teacher][slot.Column()] == nil {
			g.rows[p.Teacher][slot.Column()] = &Lesson{Class: p.Class, Subject: p.Subject}
		}
		return true
	})
	return g
}

func (g *TeacherGrid) Calendar() Calendar {
	return g.calendar
}

// Columns returns the column names in calendar order.
func (g *TeacherGrid) Columns() []string {
	return append([]string(nil), g.columns...)
}

// Slot resolves a column name.
func (g *TeacherGrid) Slot(column string) (TimeSlot, error) {
	slot, ok := g.slots[column]
	if !ok {
		return TimeSlot{}, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	return slot, nil
}

// AddTeacher registers an empty row if teacher is new.
func (g *TeacherGrid) AddTeacher(teacher string) {
	if _, ok := g.rows[teacher]; !ok {
		g.rows[teacher] = make(map[string]*Lesson)
	}
}

func (g *TeacherGrid) HasTeacher(teacher string) bool {
	_, ok := g.rows[teacher]
	return ok
}

// Teachers returns the row keys, sorted.
func (g *TeacherGrid) Teachers() []string {
	teachers := lo.Keys(g.rows)
	sort.Strings(teachers)
	return teachers
}

// Set writes a cell. A nil lesson frees it.
func (g *TeacherGrid) Set(teacher, column string, lesson *Lesson) error {
	if _, err := g.Slot(column); err != nil {
		return err
	}
	g.AddTeacher(teacher)
	if lesson == nil {
		delete(g.rows[teacher], column)
		return nil
	}
	copied := *lesson
	g.rows[teacher][column] = &copied
	return nil
}

// At returns the lesson at (teacher, column) or nil.
func (g *TeacherGrid) At(teacher, column string) *Lesson {
	return g.rows[teacher][column]
}

// Swap exchanges the teacher's cells at a and b.
func (g *TeacherGrid) Swap(teacher, a, b string) {
	row := g.rows[teacher]
	if row == nil {
		return
	}
	la, lb := row[a], row[b]
	delete(row, a)
	delete(row, b)
	if lb != nil {
		row[a] = lb
	}
	if la != nil {
		row[b] = la
	}
}

// ConflictsAt lists, sorted, the teachers sharing a class with another
// teacher in column.
func (g *TeacherGrid) ConflictsAt(column string) []string {
	byClass := make(map[string][]string)
	for teacher, row := range g.rows {
		if lesson := row[column]; lesson != nil {
			byClass[lesson.Class] = append(byClass[lesson.Class], teacher)
		}
	}
	var conflicting []string
	for _, teachers := range byClass {
		if len(teachers) > 1 {
			conflicting = append(conflicting, teachers...)
		}
	}
	sort.Strings(conflicting)
	return conflicting
}

// Conflicts returns every conflicting column with its teachers.
func (g *TeacherGrid) Conflicts() map[string][]string {
	out := make(map[string][]string)
	for _, column := range g.columns {
		if teachers := g.ConflictsAt(column); len(teachers) > 0 {
			out[column] = teachers
		}
	}
	return out
}

// FreeColumns lists the teacher's empty columns in calendar order.
func (g *TeacherGrid) FreeColumns(teacher string) []string {
	row := g.rows[teacher]
	return lo.Filter(g.columns, func(column string, _ int) bool {
		return row[column] == nil
	})
}

// Classes returns every class in the grid, sorted.
func (g *TeacherGrid) Classes() []string {
	var classes []string
	for _, row := range g.rows {
		for _, lesson := range row {
			classes = append(classes, lesson.Class)
		}
	}
	classes = lo.Uniq(classes)
	sort.Strings(classes)
	return classes
}

// Clone returns a deep copy.
func (g *TeacherGrid) Clone() *TeacherGrid {
	out := &TeacherGrid{
		calendar: g.calendar,
		columns:  g.columns,
		slots:    g.slots,
		rows:     make(map[string]map[string]*Lesson, len(g.rows)),
	}
	for teacher, row := range g.rows {
		copied := make(map[string]*Lesson, len(row))
		for column, lesson := range row {
			l := *lesson
			copied[column] = &l
		}
		out.rows[teacher] = copied
	}
	return out
}

// ToSchedule converts the grid back to a slot-indexed schedule. Conflicts
// survive the conversion and show up in a sanity check.
func (g *TeacherGrid) ToSchedule() *Schedule {
	s := NewSchedule(g.calendar)
	for _, teacher := range g.Teachers() {
		for column, lesson := range g.rows[teacher] {
			s.Place(g.slots[column], Placement{Class: lesson.Class, Teacher: teacher, Subject: lesson.Subject})
		}
	}
	return s
}

// DayRow returns whether teacher works each hour of day, in hour order.
func (g *TeacherGrid) DayRow(teacher, day string) []bool {
	row := g.rows[teacher]
	worked := make([]bool, len(g.calendar.Hours))
	for i, hour := range g.calendar.Hours {
		worked[i] = row[TimeSlot{Day: day, Hour: hour}.Column()] != nil
	}
	return worked
}
