package timetable

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Move is one cell exchange in a teacher row.
type Move struct {
	Teacher string `json:"teacher"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Resolution is a conflict-free grid reached from a seed move.
type Resolution struct {
	Seed       string       `json:"seed"`
	Grid       *TeacherGrid `json:"-"`
	History    []Move       `json:"history"`
	Iterations int          `json:"iterations"`
	Quality    int          `json:"quality"`
}

// SeedReport is the outcome of one seed in ResolveBest.
type SeedReport struct {
	Seed       string `json:"seed"`
	Solved     bool   `json:"solved"`
	Iterations int    `json:"iterations"`
	Moves      int    `json:"moves"`
	Quality    int    `json:"quality,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Resolver propagates a requested move through a teacher grid until no
// column holds the same class twice.
type Resolver struct {
	rules  Rules
	logger *zap.Logger
}

func NewResolver(rules Rules, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{rules: rules, logger: logger}
}

type cellKey struct {
	teacher string
	column  string
}

// Resolve moves teacher's lesson from one column to another and then
// relocates whoever ends up in conflict, one free column at a time. The
// input grid is not modified.
func (r *Resolver) Resolve(grid *TeacherGrid, teacher, from, to string) (*Resolution, error) {
	if !grid.HasTeacher(teacher) {
		return nil, fmt.Errorf("unknown teacher %q", teacher)
	}
	if _, err := grid.Slot(from); err != nil {
		return nil, err
	}
	if _, err := grid.Slot(to); err != nil {
		return nil, err
	}

	work := grid.Clone()
	res := &Resolution{Seed: to, Grid: work}
	seen := map[cellKey]struct{}{{teacher, to}: {}}

	conflicts := r.permute(work, res, teacher, from, to)
	current := teacher
	for len(conflicts) > 0 && res.Iterations < r.rules.ResolverMaxIterations {
		res.Iterations++

		column := conflicts[0].column
		next, ok := firstOther(conflicts[0].teachers, current)
		if !ok {
			break
		}
		current = next

		free, found := nextFreeColumn(work, current, seen)
		if !found {
			// current stays advanced: the next round alternates back to
			// the other teacher of the column.
			continue
		}
		if !r.allowed(work, current, column, free) {
			seen[cellKey{current, free}] = struct{}{}
			continue
		}
		conflicts = r.permute(work, res, current, column, free)
		seen[cellKey{current, column}] = struct{}{}
	}

	if len(conflicts) > 0 {
		r.logger.Debug("resolver gave up",
			zap.String("teacher", teacher),
			zap.String("from", from),
			zap.String("to", to),
			zap.Int("iterations", res.Iterations),
		)
		return res, ErrNoSolutionFound
	}
	res.Quality = ScheduleQuality(work)
	return res, nil
}

// ResolveBest runs Resolve for every seed column and returns the solved
// resolution with the lowest quality score, earliest seed first on ties.
// With no seeds every free column of teacher is tried.
func (r *Resolver) ResolveBest(grid *TeacherGrid, teacher, from string, seeds []string) (*Resolution, []SeedReport, error) {
	if len(seeds) == 0 {
		seeds = grid.FreeColumns(teacher)
	}

	var (
		best    *Resolution
		reports = make([]SeedReport, 0, len(seeds))
	)
	for _, seed := range seeds {
		res, err := r.Resolve(grid, teacher, from, seed)
		report := SeedReport{Seed: seed}
		if res != nil {
			report.Iterations = res.Iterations
			report.Moves = len(res.History)
		}
		switch {
		case err == nil:
			report.Solved = true
			report.Quality = res.Quality
			if best == nil || res.Quality < best.Quality {
				best = res
			}
		case errors.Is(err, ErrNoSolutionFound):
			report.Error = err.Error()
		default:
			return nil, reports, err
		}
		reports = append(reports, report)
	}

	if best == nil {
		return nil, reports, ErrNoSolutionFound
	}
	r.logger.Info("resolver finished",
		zap.String("teacher", teacher),
		zap.String("from", from),
		zap.String("best_seed", best.Seed),
		zap.Int("quality", best.Quality),
		zap.Int("seeds", len(seeds)),
	)
	return best, reports, nil
}

type columnConflict struct {
	column   string
	teachers []string
}

func (r *Resolver) permute(g *TeacherGrid, res *Resolution, teacher, a, b string) []columnConflict {
	g.Swap(teacher, a, b)
	res.History = append(res.History, Move{Teacher: teacher, From: a, To: b})

	var conflicts []columnConflict
	for _, column := range []string{a, b} {
		if teachers := g.ConflictsAt(column); len(teachers) > 0 {
			conflicts = append(conflicts, columnConflict{column: column, teachers: teachers})
		}
	}
	return conflicts
}

// allowed applies the last-hour allow-list to both cells and caps the
// moved teacher's holes per day.
func (r *Resolver) allowed(g *TeacherGrid, teacher, a, b string) bool {
	slotA, _ := g.Slot(a)
	slotB, _ := g.Slot(b)
	if lesson := g.At(teacher, a); lesson != nil && !r.rules.ClassAllowedAt(lesson.Class, slotB) {
		return false
	}
	if lesson := g.At(teacher, b); lesson != nil && !r.rules.ClassAllowedAt(lesson.Class, slotA) {
		return false
	}

	g.Swap(teacher, a, b)
	defer g.Swap(teacher, a, b)
	for _, holes := range HolesByDay(g, teacher) {
		if holes > r.rules.MaxHolesPerDay {
			return false
		}
	}
	return true
}

func firstOther(teachers []string, current string) (string, bool) {
	for _, t := range teachers {
		if t != current {
			return t, true
		}
	}
	return "", false
}

func nextFreeColumn(g *TeacherGrid, teacher string, seen map[cellKey]struct{}) (string, bool) {
	for _, column := range g.columns {
		if _, ok := seen[cellKey{teacher, column}]; ok {
			continue
		}
		if g.At(teacher, column) == nil {
			return column, true
		}
	}
	return "", false
}
