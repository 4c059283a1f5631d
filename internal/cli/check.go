package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juan-barragan/oraccio/internal/timetable"
)

func newCheckCommand() *cobra.Command {
	var gridPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a teacher grid against the scheduling rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, _, err := loadRules()
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}
			grid, err := readGrid(gridPath, rules.Calendar)
			if err != nil {
				return err
			}

			schedule := grid.ToSchedule()
			violations := timetable.NewValidator(rules).SanityCheck(schedule)

			w := cmd.OutOrStdout()
			printSection(w, "Check")
			printField(w, "Teachers", len(grid.Teachers()))
			printField(w, "Classes", len(grid.Classes()))
			printField(w, "Lessons", schedule.Len())
			if len(violations) == 0 {
				printSuccess(w, "no violations")
				return nil
			}
			for _, v := range violations {
				printError(w, "%s", v)
			}
			return fmt.Errorf("%d violations found", len(violations))
		},
	}
	cmd.Flags().StringVarP(&gridPath, "grid", "g", "", "Teacher grid CSV")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}
