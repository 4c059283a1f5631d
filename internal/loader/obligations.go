// Package loader reads obligation lists and teacher grids from CSV.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/timetable"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Report describes how an obligations file was read.
type Report struct {
	Rows    int `json:"rows"`
	Dropped int `json:"dropped"`
	Merged  int `json:"merged"`
}

var obligationHeaders = map[string][]string{
	"teacher": {"identificativo", "teacher", "docente"},
	"subject": {"materia", "subject"},
	"class":   {"classi", "classe", "class"},
	"hours":   {"n.ore", "ore", "hours"},
}

// ReadObligations parses an obligations CSV. Rows with an empty field or
// bad hours are dropped with a warning. Repeated (teacher, class, subject)
// rows are merged by summing their hours.
func ReadObligations(r io.Reader, logger *zap.Logger) ([]timetable.Obligation, Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, Report{}, fmt.Errorf("read header: %w", err)
	}
	index, err := headerIndex(header, obligationHeaders)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		report      Report
		obligations []timetable.Obligation
		positions   = make(map[timetable.ObligationKey]int)
		line        = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, report, fmt.Errorf("read line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		report.Rows++

		o, reason := parseObligation(record, index)
		if reason != "" {
			report.Dropped++
			logger.Warn("obligation row dropped", zap.Int("line", line), zap.String("reason", reason))
			continue
		}

		if at, dup := positions[o.Key()]; dup {
			obligations[at].Hours += o.Hours
			report.Merged++
			logger.Warn("duplicate obligation merged",
				zap.Int("line", line),
				zap.String("teacher", o.Teacher),
				zap.String("class", o.Class),
				zap.String("subject", o.Subject),
				zap.Int("hours", obligations[at].Hours),
			)
			continue
		}
		positions[o.Key()] = len(obligations)
		obligations = append(obligations, o)
	}

	logger.Info("obligations loaded",
		zap.Int("rows", report.Rows),
		zap.Int("obligations", len(obligations)),
		zap.Int("dropped", report.Dropped),
		zap.Int("merged", report.Merged),
	)
	return obligations, report, nil
}

func parseObligation(record []string, index map[string]int) (timetable.Obligation, string) {
	field := func(name string) string {
		i := index[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	o := timetable.Obligation{
		Teacher: field("teacher"),
		Class:   field("class"),
		Subject: field("subject"),
	}
	if o.Teacher == "" || o.Class == "" || o.Subject == "" {
		return o, "missing teacher, class or subject"
	}
	raw := field("hours")
	hours, err := strconv.Atoi(raw)
	if err != nil {
		// spreadsheets export whole numbers as "2.0"
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return o, fmt.Sprintf("hours %q is not an integer", raw)
		}
		hours = int(f)
	}
	if hours < 0 {
		return o, fmt.Sprintf("negative hours %d", hours)
	}
	o.Hours = hours
	return o, ""
}

func headerIndex(header []string, want map[string][]string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	index := make(map[string]int, len(want))
	for field, aliases := range want {
		found := false
		for _, alias := range aliases {
			if i, ok := positions[alias]; ok {
				index[field] = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s (accepted: %s)", ErrMissingColumn, field, strings.Join(aliases, ", "))
		}
	}
	return index, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
