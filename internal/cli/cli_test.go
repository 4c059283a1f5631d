package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/config"
)

func useRules(t *testing.T, rules timetable.Rules) {
	t.Helper()
	previous := loadRules
	loadRules = func() (timetable.Rules, config.TimetableConfig, error) {
		return rules, config.TimetableConfig{Attempts: 2, Seed: 1}, nil
	}
	t.Cleanup(func() { loadRules = previous })
}

func lineRules(hours ...int) timetable.Rules {
	rules := timetable.DefaultRules()
	rules.Calendar = timetable.Calendar{Days: []string{"LUN"}, Hours: hours}
	rules.ExtendedDays = nil
	rules.LastHourAllowed = nil
	return rules
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateWritesExports(t *testing.T) {
	useRules(t, timetable.DefaultRules())
	dir := t.TempDir()
	input := writeFile(t, dir, "obligations.csv", "IDENTIFICATIVO,MATERIA,CLASSI,N.ORE\nT1,MAT,1A,2\nT2,ITA,1A,2\nT2,ITA,1A,1\n")
	out := filepath.Join(dir, "out")

	output, err := run(t, "generate", "--input", input, "--out", out, "--format", "csv,html", "--attempts", "3")
	require.NoError(t, err, output)

	assert.Contains(t, output, "every obligation placed")
	assert.Contains(t, output, "1 duplicate rows merged")
	for _, name := range []string{"teacher.csv", "class.csv", "teacher.html", "class.html", "result.json"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	teacherCSV, err := os.ReadFile(filepath.Join(out, "teacher.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(teacherCSV), "Teacher,LUN8")
	assert.Contains(t, string(teacherCSV), "T2,")
}

func TestGenerateRejectsUnknownFormat(t *testing.T) {
	useRules(t, timetable.DefaultRules())
	dir := t.TempDir()
	input := writeFile(t, dir, "obligations.csv", "IDENTIFICATIVO,MATERIA,CLASSI,N.ORE\nT1,MAT,1A,2\n")

	_, err := run(t, "generate", "--input", input, "--out", dir, "--format", "xlsx")
	assert.ErrorContains(t, err, `unsupported format "xlsx"`)

	_, err = run(t, "generate")
	assert.Error(t, err)
}

func TestCheckReportsViolations(t *testing.T) {
	useRules(t, lineRules(8, 9, 10))
	dir := t.TempDir()

	clean := writeFile(t, dir, "clean.csv", "Teacher,LUN8,LUN9,LUN10,Weekly_Total\nT1,A,,,1\nT2,,A (ITA),,1\n")
	output, err := run(t, "check", "--grid", clean)
	require.NoError(t, err, output)
	assert.Contains(t, output, "no violations")

	clash := writeFile(t, dir, "clash.csv", "Teacher,LUN8,LUN9,LUN10,Weekly_Total\nT1,A,,,1\nT2,A (ITA),,,1\n")
	output, err = run(t, "check", "--grid", clash)
	assert.ErrorContains(t, err, "1 violations found")
	assert.Contains(t, output, "class A booked 2 times at LUN8")
}

func TestResolveWritesDiagnostic(t *testing.T) {
	useRules(t, lineRules(8, 9, 10))
	dir := t.TempDir()
	grid := writeFile(t, dir, "grid.csv", "Teacher,LUN8,LUN9,LUN10\nT1,A,,\nT2,,A,\n")
	out := filepath.Join(dir, "out")

	output, err := run(t, "resolve", "--grid", grid, "--teacher", "T1", "--from", "LUN8", "--to", "LUN9", "--out", out)
	require.NoError(t, err, output)
	assert.Contains(t, output, "T2 LUN9 -> LUN8")

	resolved, err := os.ReadFile(filepath.Join(out, "grid.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Teacher,LUN8,LUN9,LUN10,Weekly_Total\nT1,,A,,1\nT2,A,,,1\n", string(resolved))
	assert.FileExists(t, filepath.Join(out, "resolution.html"))
}

func TestResolveRejectsUnknownTeacher(t *testing.T) {
	useRules(t, lineRules(8, 9, 10))
	dir := t.TempDir()
	grid := writeFile(t, dir, "grid.csv", "Teacher,LUN8,LUN9,LUN10\nT1,A,,\n")

	_, err := run(t, "resolve", "--grid", grid, "--teacher", "T9", "--from", "LUN8")
	assert.ErrorContains(t, err, `teacher "T9"`)

	_, err = run(t, "resolve", "--grid", grid, "--teacher", "T1", "--from", "LUN9")
	assert.ErrorContains(t, err, "no lesson at LUN9")
}
