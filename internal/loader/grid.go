package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/juan-barragan/oraccio/internal/timetable"
)

var cellPattern = regexp.MustCompile(`^(.+?)\s*\((.*)\)$`)

// ReadTeacherGrid parses a teacher-view CSV: a key column with the teacher
// and one column per slot holding "class" or "class (subject)". Columns
// outside the calendar, such as Weekly_Total, are ignored.
func ReadTeacherGrid(r io.Reader, cal timetable.Calendar) (*timetable.TeacherGrid, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	grid := timetable.NewTeacherGrid(cal)
	columns := make(map[int]string)
	for i, name := range header[1:] {
		name = strings.ToUpper(strings.TrimSpace(name))
		if _, err := grid.Slot(name); err == nil {
			columns[i+1] = name
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no slot columns matching %s", ErrMissingColumn, strings.Join(cal.Columns(), ","))
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		teacher := strings.TrimSpace(record[0])
		if teacher == "" {
			continue
		}
		grid.AddTeacher(teacher)
		for i, column := range columns {
			if i >= len(record) {
				continue
			}
			lesson, ok := ParseCell(record[i])
			if !ok {
				continue
			}
			if err := grid.Set(teacher, column, &lesson); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	return grid, nil
}

// ParseCell reads "class" or "class (subject)". Empty cells and the
// placeholders "-" and "0" are free.
func ParseCell(raw string) (timetable.Lesson, bool) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "-", "0", "nan", "NaN":
		return timetable.Lesson{}, false
	}
	if m := cellPattern.FindStringSubmatch(raw); m != nil {
		return timetable.Lesson{Class: strings.TrimSpace(m[1]), Subject: strings.TrimSpace(m[2])}, true
	}
	return timetable.Lesson{Class: raw}, true
}
