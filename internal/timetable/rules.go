package timetable

import (
	"fmt"

	"github.com/samber/lo"
)

// Rules carries every numeric cap and allow-list the engine enforces. The
// defaults mirror the reference school; deployments override them through
// configuration.
type Rules struct {
	Calendar Calendar

	MaxDailyHoursTeacher         int
	MaxDailyHoursTeacherForClass int
	MaxDailyHoursClass           int
	ExtendedDailyHoursClass      int
	// ExtendedDays allow ExtendedDailyHoursClass for every class.
	ExtendedDays []string
	// LastHourAllowed restricts the last hour of the listed days to the
	// listed classes. Days absent from the map are unrestricted.
	LastHourAllowed map[string][]string

	MorningLastHour int
	MorningBonus    int
	AdjacencyBonus  int

	MaxTryouts            int
	ResolverMaxIterations int
	MaxHolesPerDay        int
}

// DefaultRules returns the reference configuration.
func DefaultRules() Rules {
	return Rules{
		Calendar:                     DefaultCalendar(),
		MaxDailyHoursTeacher:         5,
		MaxDailyHoursTeacherForClass: 2,
		MaxDailyHoursClass:           6,
		ExtendedDailyHoursClass:      7,
		ExtendedDays:                 []string{"MAR", "GIO"},
		LastHourAllowed: map[string][]string{
			"LUN": {"3E", "4E", "5E", "1L", "1I", "2L", "2I", "3L"},
			"MER": {"1L", "1I", "2L", "2I", "3L"},
			"VEN": {"3L"},
		},
		MorningLastHour:       11,
		MorningBonus:          10,
		AdjacencyBonus:        5,
		MaxTryouts:            10,
		ResolverMaxIterations: 100,
		MaxHolesPerDay:        2,
	}
}

// Validate rejects rule sets the engine cannot honour.
func (r Rules) Validate() error {
	if err := r.Calendar.Validate(); err != nil {
		return err
	}
	if r.MaxDailyHoursTeacher <= 0 || r.MaxDailyHoursTeacherForClass <= 0 || r.MaxDailyHoursClass <= 0 {
		return fmt.Errorf("daily caps must be positive")
	}
	if r.ExtendedDailyHoursClass < r.MaxDailyHoursClass {
		return fmt.Errorf("extended class cap %d below base cap %d", r.ExtendedDailyHoursClass, r.MaxDailyHoursClass)
	}
	for day := range r.LastHourAllowed {
		if !r.Calendar.HasDay(day) {
			return fmt.Errorf("last-hour allow-list references unknown day %s", day)
		}
	}
	for _, day := range r.ExtendedDays {
		if !r.Calendar.HasDay(day) {
			return fmt.Errorf("extended day %s not in calendar", day)
		}
	}
	if r.MaxTryouts < 0 || r.ResolverMaxIterations < 0 || r.MaxHolesPerDay < 0 {
		return fmt.Errorf("iteration budgets must not be negative")
	}
	return nil
}

// MaxHoursAllowed is the class daily cap for day.
func (r Rules) MaxHoursAllowed(day, class string) int {
	if lo.Contains(r.ExtendedDays, day) {
		return r.ExtendedDailyHoursClass
	}
	if lo.Contains(r.LastHourAllowed[day], class) {
		return r.ExtendedDailyHoursClass
	}
	return r.MaxDailyHoursClass
}

// IsRestricted reports whether slot is a last hour with an allow-list.
func (r Rules) IsRestricted(slot TimeSlot) bool {
	if slot.Hour != r.Calendar.LastHour() {
		return false
	}
	_, ok := r.LastHourAllowed[slot.Day]
	return ok
}

// ClassAllowedAt applies the last-hour allow-list.
func (r Rules) ClassAllowedAt(class string, slot TimeSlot) bool {
	if !r.IsRestricted(slot) {
		return true
	}
	return lo.Contains(r.LastHourAllowed[slot.Day], class)
}

// AllowedClassesAt filters classes down to those that may sit in slot.
func (r Rules) AllowedClassesAt(classes []string, slot TimeSlot) []string {
	if !r.IsRestricted(slot) {
		return classes
	}
	return lo.Filter(classes, func(class string, _ int) bool {
		return lo.Contains(r.LastHourAllowed[slot.Day], class)
	})
}

// NotAllowed lists the classes forbidden in slot, out of the known classes.
func (r Rules) NotAllowed(classes []string, slot TimeSlot) map[string]struct{} {
	blocked := make(map[string]struct{})
	if !r.IsRestricted(slot) {
		return blocked
	}
	for _, class := range classes {
		if !lo.Contains(r.LastHourAllowed[slot.Day], class) {
			blocked[class] = struct{}{}
		}
	}
	return blocked
}

func (r Rules) isMorning(hour int) bool {
	return hour <= r.MorningLastHour
}
