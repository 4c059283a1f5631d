package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/juan-barragan/oraccio/internal/loader"
	"github.com/juan-barragan/oraccio/internal/service"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

type resolveOptions struct {
	grid    string
	teacher string
	from    string
	to      []string
	out     string
}

func newResolveCommand() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Move a lesson in a teacher grid and resolve the conflicts",
		Long: `Moves --teacher's lesson out of --from and swaps lessons of the other
teachers until no class is taught twice in the same hour. Without --to every
free hour of the teacher is tried and the least fragmented grid wins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.grid, "grid", "g", "", "Teacher grid CSV")
	cmd.Flags().StringVarP(&opts.teacher, "teacher", "t", "", "Teacher whose lesson moves")
	cmd.Flags().StringVar(&opts.from, "from", "", "Column the lesson leaves, e.g. GIO8")
	cmd.Flags().StringSliceVar(&opts.to, "to", nil, "Candidate target columns")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "out", "Output directory")
	for _, name := range []string{"grid", "teacher", "from"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runResolve(cmd *cobra.Command, opts *resolveOptions) error {
	rules, _, err := loadRules()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	grid, err := readGrid(opts.grid, rules.Calendar)
	if err != nil {
		return err
	}
	if !grid.HasTeacher(opts.teacher) {
		return fmt.Errorf("teacher %q is not in %s", opts.teacher, opts.grid)
	}
	if grid.At(opts.teacher, opts.from) == nil {
		return fmt.Errorf("teacher %q has no lesson at %s", opts.teacher, opts.from)
	}

	w := cmd.OutOrStdout()
	resolver := timetable.NewResolver(rules, log)
	res, reports, err := resolver.ResolveBest(grid, opts.teacher, opts.from, opts.to)

	printSection(w, "Seeds")
	for _, r := range reports {
		if r.Solved {
			printDim(w, "%-6s solved in %d iterations, %d moves, quality %d", r.Seed, r.Iterations, r.Moves, r.Quality)
			continue
		}
		printDim(w, "%-6s unsolved after %d iterations", r.Seed, r.Iterations)
	}
	if err != nil {
		if errors.Is(err, timetable.ErrNoSolutionFound) {
			printError(cmd.ErrOrStderr(), "no conflict-free grid found for %s from %s", opts.teacher, opts.from)
		}
		return err
	}

	printSection(w, "Resolution")
	printField(w, "Seed", res.Seed)
	printField(w, "Iterations", res.Iterations)
	printField(w, "Quality", res.Quality)
	for i, m := range res.History {
		printDim(w, "%2d. %s %s -> %s", i+1, m.Teacher, m.From, m.To)
	}

	exports := service.NewExportService(nil, nil, service.ExportConfig{}, log)
	title := fmt.Sprintf("Spostamento %s %s -> %s", opts.teacher, opts.from, res.Seed)
	notes := []string{
		fmt.Sprintf("Iterazioni: %d", res.Iterations),
		fmt.Sprintf("Spostamenti: %d", len(res.History)),
		fmt.Sprintf("Qualita: %d", res.Quality),
	}
	html, err := exports.Render(service.GridDataset(res.Grid, res.History), service.FormatHTML, title, notes...)
	if err != nil {
		return err
	}
	csv, err := exports.Render(service.GridDataset(res.Grid, nil), service.FormatCSV, title)
	if err != nil {
		return err
	}

	printSection(w, "Exports")
	for name, payload := range map[string][]byte{"resolution.html": html, "grid.csv": csv} {
		path, err := writeOutput(opts.out, name, payload)
		if err != nil {
			return err
		}
		printSuccess(w, "%s", path)
	}
	return nil
}

func readGrid(path string, cal timetable.Calendar) (*timetable.TeacherGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid, err := loader.ReadTeacherGrid(f, cal)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return grid, nil
}
