package timetable

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Obligation is a weekly (teacher, class, subject) demand in hours.
type Obligation struct {
	Teacher string `json:"teacher"`
	Class   string `json:"class"`
	Subject string `json:"subject"`
	Hours   int    `json:"hours"`
}

// Key identifies the obligation regardless of its hours.
func (o Obligation) Key() ObligationKey {
	return ObligationKey{Teacher: o.Teacher, Class: o.Class, Subject: o.Subject}
}

func (o Obligation) validate() error {
	if o.Teacher == "" || o.Class == "" || o.Subject == "" {
		return fmt.Errorf("%w: teacher, class and subject are required (%+v)", ErrInvalidObligation, o)
	}
	if o.Hours < 0 {
		return fmt.Errorf("%w: negative hours for %s/%s/%s", ErrInvalidObligation, o.Teacher, o.Class, o.Subject)
	}
	return nil
}

type ObligationKey struct {
	Teacher string
	Class   string
	Subject string
}

// TotalHours sums the demand of obligations.
func TotalHours(obligations []Obligation) int {
	return lo.SumBy(obligations, func(o Obligation) int { return o.Hours })
}

// FailedAssignment is the unplaced remainder of an obligation.
type FailedAssignment struct {
	Teacher   string `json:"teacher"`
	Class     string `json:"class"`
	Subject   string `json:"subject"`
	Remaining int    `json:"remaining"`
	Allocated int    `json:"allocated"`
}

func (f FailedAssignment) Key() ObligationKey {
	return ObligationKey{Teacher: f.Teacher, Class: f.Class, Subject: f.Subject}
}

// failedLedger tracks unplaced hours in allocator order. Rows disappear once
// their remaining hours reach zero.
type failedLedger struct {
	rows []FailedAssignment
}

func newFailedLedger(rows []FailedAssignment) *failedLedger {
	return &failedLedger{rows: append([]FailedAssignment(nil), rows...)}
}

func (l *failedLedger) Len() int {
	return len(l.rows)
}

func (l *failedLedger) Rows() []FailedAssignment {
	return append([]FailedAssignment(nil), l.rows...)
}

func (l *failedLedger) Remaining() int {
	return lo.SumBy(l.rows, func(f FailedAssignment) int { return f.Remaining })
}

// HasClass reports whether class still has outstanding hours.
func (l *failedLedger) HasClass(class string) bool {
	return lo.ContainsBy(l.rows, func(f FailedAssignment) bool { return f.Class == class })
}

// ForClass returns the rows for class ordered by teacher, then subject.
func (l *failedLedger) ForClass(class string) []FailedAssignment {
	rows := lo.Filter(l.rows, func(f FailedAssignment, _ int) bool { return f.Class == class })
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Teacher != rows[j].Teacher {
			return rows[i].Teacher < rows[j].Teacher
		}
		return rows[i].Subject < rows[j].Subject
	})
	return rows
}

// Record moves hours of key from remaining to allocated.
func (l *failedLedger) Record(key ObligationKey, hours int) bool {
	for i := range l.rows {
		if l.rows[i].Key() != key {
			continue
		}
		l.rows[i].Allocated += hours
		l.rows[i].Remaining -= hours
		if l.rows[i].Remaining <= 0 {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
		}
		return true
	}
	return false
}
