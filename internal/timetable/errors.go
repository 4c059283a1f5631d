package timetable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidObligation is returned by NewSession for malformed input.
	ErrInvalidObligation = errors.New("invalid obligation")
	// ErrInvariantViolation marks a grid that failed its sanity check.
	ErrInvariantViolation = errors.New("schedule invariant violated")
	// ErrNoSolutionFound is reported per seed when the resolver runs out of iterations.
	ErrNoSolutionFound = errors.New("no solution found")
	// ErrUnknownColumn is returned when a slot or column lies outside the calendar.
	ErrUnknownColumn = errors.New("unknown column")
)

// InvariantError carries the violations found by a sanity check.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrInvariantViolation.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvariantViolation, strings.Join(parts, "; "))
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}
