// Package cli implements the oraccio command line: local generation,
// conflict resolution on teacher grids and grid checks.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/service"
	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/config"
	"github.com/juan-barragan/oraccio/pkg/logger"
)

var verbose bool

// loadRules reads the rule set from the environment; tests replace it.
var loadRules = func() (timetable.Rules, config.TimetableConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return timetable.Rules{}, config.TimetableConfig{}, err
	}
	rules, err := service.RulesFromConfig(cfg.Timetable)
	return rules, cfg.Timetable, err
}

// NewRootCommand builds the oraccio command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "oraccio",
		Version: version,
		Short:   "Weekly school timetable generator",
		Long: `oraccio places teaching obligations into a weekly timetable, checks
teacher grids against the scheduling rules and resolves the conflicts left
by moving a lesson.

Rules are read from the same TIMETABLE_* environment as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	if version != "" {
		root.SetVersionTemplate("{{.Version}}\n")
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine progress to stderr")

	root.AddCommand(newGenerateCommand())
	root.AddCommand(newResolveCommand())
	root.AddCommand(newCheckCommand())
	return root
}

// Execute runs the command line with os.Args.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

func newLogger() *zap.Logger {
	l, err := logger.NewCLI(verbose)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
