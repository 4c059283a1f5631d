package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeSlot is a (day, hour) coordinate of the weekly grid. It encodes as
// its column name so it can key JSON objects.
type TimeSlot struct {
	Day  string
	Hour int
}

// Column renders the slot in the flat column form used by exports, e.g. "LUN8".
func (s TimeSlot) Column() string {
	return s.Day + strconv.Itoa(s.Hour)
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %d:00", s.Day, s.Hour)
}

func (s TimeSlot) MarshalText() ([]byte, error) {
	return []byte(s.Column()), nil
}

func (s *TimeSlot) UnmarshalText(text []byte) error {
	parsed, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseColumn is the inverse of Column.
func ParseColumn(column string) (TimeSlot, error) {
	column = strings.TrimSpace(column)
	split := strings.IndexFunc(column, func(r rune) bool { return r >= '0' && r <= '9' })
	if split <= 0 {
		return TimeSlot{}, fmt.Errorf("invalid slot column %q", column)
	}
	hour, err := strconv.Atoi(column[split:])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid slot column %q: %w", column, err)
	}
	return TimeSlot{Day: strings.ToUpper(column[:split]), Hour: hour}, nil
}

// Calendar fixes the days and hours of the grid.
type Calendar struct {
	Days  []string `json:"days"`
	Hours []int    `json:"hours"`
}

// DefaultCalendar is the five-day, seven-hour school week.
func DefaultCalendar() Calendar {
	return Calendar{
		Days:  []string{"LUN", "MAR", "MER", "GIO", "VEN"},
		Hours: []int{8, 9, 10, 11, 12, 13, 14},
	}
}

// Slots enumerates the grid days outer, hours inner.
func (c Calendar) Slots() []TimeSlot {
	slots := make([]TimeSlot, 0, len(c.Days)*len(c.Hours))
	for _, day := range c.Days {
		for _, hour := range c.Hours {
			slots = append(slots, TimeSlot{Day: day, Hour: hour})
		}
	}
	return slots
}

// Columns returns the flat column names in slot order.
func (c Calendar) Columns() []string {
	slots := c.Slots()
	columns := make([]string, len(slots))
	for i, slot := range slots {
		columns[i] = slot.Column()
	}
	return columns
}

// LastHour is the final teaching hour of every day.
func (c Calendar) LastHour() int {
	last := 0
	for _, hour := range c.Hours {
		if hour > last {
			last = hour
		}
	}
	return last
}

// Contains reports whether slot lies on the grid.
func (c Calendar) Contains(slot TimeSlot) bool {
	return c.HasDay(slot.Day) && c.HasHour(slot.Hour)
}

func (c Calendar) HasDay(day string) bool {
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}

func (c Calendar) HasHour(hour int) bool {
	for _, h := range c.Hours {
		if h == hour {
			return true
		}
	}
	return false
}

func (c Calendar) Validate() error {
	if len(c.Days) == 0 || len(c.Hours) == 0 {
		return fmt.Errorf("calendar requires at least one day and one hour")
	}
	seenDays := make(map[string]struct{}, len(c.Days))
	for _, day := range c.Days {
		if day == "" {
			return fmt.Errorf("calendar day must not be empty")
		}
		if _, dup := seenDays[day]; dup {
			return fmt.Errorf("calendar day %s repeated", day)
		}
		seenDays[day] = struct{}{}
	}
	for i := 1; i < len(c.Hours); i++ {
		if c.Hours[i] <= c.Hours[i-1] {
			return fmt.Errorf("calendar hours must be strictly increasing")
		}
	}
	return nil
}

// ScanOrder is the enumeration order the allocator walks when looking for a
// slot. Ties between equally scored slots go to the first one visited.
type ScanOrder struct {
	Days  []string
	Hours []int
}

// CanonicalOrder walks the calendar as declared.
func CanonicalOrder(c Calendar) ScanOrder {
	return ScanOrder{
		Days:  append([]string(nil), c.Days...),
		Hours: append([]int(nil), c.Hours...),
	}
}

func (o ScanOrder) slots() []TimeSlot {
	slots := make([]TimeSlot, 0, len(o.Days)*len(o.Hours))
	for _, day := range o.Days {
		for _, hour := range o.Hours {
			slots = append(slots, TimeSlot{Day: day, Hour: hour})
		}
	}
	return slots
}
