package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gridOf(t *testing.T, cal Calendar, rows map[string]map[string]string) *TeacherGrid {
	t.Helper()
	g := NewTeacherGrid(cal)
	for teacher, cells := range rows {
		g.AddTeacher(teacher)
		for column, class := range cells {
			require.NoError(t, g.Set(teacher, column, &Lesson{Class: class}))
		}
	}
	return g
}

func TestGapCost(t *testing.T) {
	cases := []struct {
		name   string
		worked []bool
		cost   int
		holes  int
	}{
		{"empty", []bool{false, false, false}, 0, 0},
		{"single lesson", []bool{false, true, false}, 0, 0},
		{"contiguous", []bool{true, true, true}, 0, 0},
		{"one hole", []bool{true, false, true}, 1, 1},
		{"run of two", []bool{true, false, false, true}, 4, 2},
		{"two single holes", []bool{true, false, true, false, true}, 2, 2},
		{"run of three and trailing", []bool{true, false, false, false, true, false}, 6, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.cost, gapCost(tc.worked))
			assert.Equal(t, tc.holes, countHoles(tc.worked))
		})
	}
}

func TestScheduleQualityAndHoles(t *testing.T) {
	cal := Calendar{Days: []string{"LUN", "MAR"}, Hours: []int{8, 9, 10, 11}}
	g := gridOf(t, cal, map[string]map[string]string{
		"T1": {"LUN8": "A", "LUN11": "B", "MAR8": "A", "MAR10": "C"},
		"T2": {"LUN9": "A"},
	})

	assert.Equal(t, 5, ScheduleQuality(g))
	assert.Equal(t, map[string]int{"LUN": 2, "MAR": 1}, HolesByDay(g, "T1"))
	assert.Equal(t, map[string]int{"LUN": 0, "MAR": 0}, HolesByDay(g, "T2"))
}

func TestTeacherGridConflicts(t *testing.T) {
	cal := Calendar{Days: []string{"LUN"}, Hours: []int{8, 9}}
	g := gridOf(t, cal, map[string]map[string]string{
		"T1": {"LUN8": "A"},
		"T2": {"LUN8": "A", "LUN9": "B"},
		"T3": {"LUN8": "C"},
	})

	assert.Equal(t, []string{"T1", "T2"}, g.ConflictsAt("LUN8"))
	assert.Empty(t, g.ConflictsAt("LUN9"))
	assert.Equal(t, map[string][]string{"LUN8": {"T1", "T2"}}, g.Conflicts())
	assert.Equal(t, []string{"LUN9"}, g.FreeColumns("T1"))
	assert.Equal(t, []string{"A", "B", "C"}, g.Classes())
	assert.Error(t, g.Set("T1", "SAB8", &Lesson{Class: "A"}))
}

func TestTeacherGridScheduleRoundTrip(t *testing.T) {
	s := NewSchedule(DefaultCalendar())
	place(s, "LUN8", "1L", "ROSSI")
	place(s, "MER14", "2L", "VERDI")

	g := GridFromSchedule(s)
	assert.Equal(t, []string{"ROSSI", "VERDI"}, g.Teachers())
	require.NotNil(t, g.At("VERDI", "MER14"))
	assert.Equal(t, "2L", g.At("VERDI", "MER14").Class)
	assert.Nil(t, g.At("VERDI", "LUN8"))

	assert.True(t, s.Equal(g.ToSchedule()))
}

func TestResolveCascadesIntoFreeColumn(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9, 10})
	g := gridOf(t, rules.Calendar, map[string]map[string]string{
		"T1": {"LUN8": "A"},
		"T2": {"LUN9": "A"},
	})
	r := NewResolver(rules, zap.NewNop())

	res, err := r.Resolve(g, "T1", "LUN8", "LUN9")

	require.NoError(t, err)
	assert.Equal(t, []Move{
		{Teacher: "T1", From: "LUN8", To: "LUN9"},
		{Teacher: "T2", From: "LUN9", To: "LUN8"},
	}, res.History)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Grid.Conflicts())
	assert.Equal(t, "A", res.Grid.At("T2", "LUN8").Class)

	assert.Equal(t, "A", g.At("T1", "LUN8").Class, "input grid must not change")
}

func TestResolveReportsNoSolution(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9, 10})
	rules.ResolverMaxIterations = 6
	g := gridOf(t, rules.Calendar, map[string]map[string]string{
		"T1": {"LUN8": "A", "LUN9": "B", "LUN10": "C"},
		"T2": {"LUN8": "D", "LUN9": "A", "LUN10": "E"},
	})
	r := NewResolver(rules, nil)

	res, err := r.Resolve(g, "T1", "LUN8", "LUN9")

	assert.True(t, errors.Is(err, ErrNoSolutionFound))
	require.NotNil(t, res)
	assert.Equal(t, 6, res.Iterations)
	assert.NotEmpty(t, res.Grid.Conflicts())
}

func TestResolveSkipsForbiddenLastHour(t *testing.T) {
	rules := DefaultRules()
	g := NewTeacherGrid(rules.Calendar)
	require.NoError(t, g.Set("T1", "VEN13", &Lesson{Class: "1A"}))
	for _, column := range rules.Calendar.Columns() {
		switch column {
		case "VEN14":
		case "VEN12":
			require.NoError(t, g.Set("T2", column, &Lesson{Class: "1A"}))
		default:
			require.NoError(t, g.Set("T2", column, &Lesson{Class: "X" + column}))
		}
	}
	r := NewResolver(rules, nil)

	res, err := r.Resolve(g, "T1", "VEN13", "VEN12")

	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []Move{
		{Teacher: "T1", From: "VEN13", To: "VEN12"},
		{Teacher: "T1", From: "VEN12", To: "LUN8"},
	}, res.History)
	assert.Nil(t, res.Grid.At("T2", "VEN14"))
	assert.Equal(t, "1A", res.Grid.At("T2", "VEN12").Class)
}

func TestResolveValidatesInput(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9})
	g := gridOf(t, rules.Calendar, map[string]map[string]string{"T1": {"LUN8": "A"}})
	r := NewResolver(rules, nil)

	_, err := r.Resolve(g, "T9", "LUN8", "LUN9")
	assert.Error(t, err)
	_, err = r.Resolve(g, "T1", "LUN8", "MAR9")
	assert.True(t, errors.Is(err, ErrUnknownColumn))
}

func TestResolveBestPicksLowestQuality(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9, 10, 11})
	g := gridOf(t, rules.Calendar, map[string]map[string]string{
		"T1": {"LUN8": "A", "LUN9": "B"},
	})
	r := NewResolver(rules, nil)

	best, reports, err := r.ResolveBest(g, "T1", "LUN8", nil)

	require.NoError(t, err)
	assert.Equal(t, "LUN10", best.Seed)
	assert.Equal(t, 0, best.Quality)
	require.Len(t, reports, 2)
	assert.Equal(t, SeedReport{Seed: "LUN10", Solved: true, Iterations: 0, Moves: 1, Quality: 0}, reports[0])
	assert.Equal(t, SeedReport{Seed: "LUN11", Solved: true, Iterations: 0, Moves: 1, Quality: 1}, reports[1])
}

func TestResolveBestFailsWhenNoSeedSolves(t *testing.T) {
	rules := smallRules([]string{"LUN"}, []int{8, 9, 10})
	rules.ResolverMaxIterations = 4
	g := gridOf(t, rules.Calendar, map[string]map[string]string{
		"T1": {"LUN8": "A", "LUN9": "B", "LUN10": "C"},
		"T2": {"LUN8": "D", "LUN9": "A", "LUN10": "E"},
	})
	r := NewResolver(rules, nil)

	best, reports, err := r.ResolveBest(g, "T1", "LUN8", []string{"LUN9"})

	assert.Nil(t, best)
	assert.True(t, errors.Is(err, ErrNoSolutionFound))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Solved)
	assert.NotEmpty(t, reports[0].Error)
}
