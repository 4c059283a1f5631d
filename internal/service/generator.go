package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

// Generator runs the attempts of one generation request and condenses the
// winner into a JobResult.
type Generator struct {
	rules   timetable.Rules
	workers int
	logger  *zap.Logger
}

func NewGenerator(rules timetable.Rules, workers int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{rules: rules, workers: workers, logger: logger}
}

// Rules returns the rule set every run uses.
func (g *Generator) Rules() timetable.Rules {
	return g.rules
}

// Run generates req. The winning grid is sanity checked before it is
// returned; a violation comes back as *timetable.InvariantError.
func (g *Generator) Run(ctx context.Context, req models.JobRequest) (*models.JobResult, *timetable.AttemptsOutcome, error) {
	start := time.Now()
	outcome, err := timetable.RunAttempts(ctx, req.EngineObligations(), timetable.AttemptsConfig{
		Attempts: req.Attempts,
		Workers:  g.workers,
		Seed:     req.Seed,
	},
		timetable.WithRules(g.rules),
		timetable.WithLogger(g.logger),
		timetable.WithRepair(req.Repair),
	)
	if err != nil {
		return nil, outcome, err
	}

	best := outcome.Best
	if err := best.Session.SanityCheck(); err != nil {
		return nil, outcome, err
	}

	result := &models.JobResult{
		BestAttempt: best.Index,
		Seed:        best.Seed,
		Calendar:    g.rules.Calendar,
		Generation:  *best.Result,
		TeacherView: best.Session.ExportTeacherView(),
		ClassView:   best.Session.ExportClassView(),
		Attempts:    summarizeAttempts(outcome.Attempts),
	}

	g.logger.Sugar().Infow("generation run finished",
		"attempts", len(outcome.Attempts),
		"best_attempt", best.Index,
		"hours_placed", result.Generation.HoursPlaced,
		"hours_required", result.Generation.HoursRequired,
		"duration", time.Since(start).String(),
	)
	return result, outcome, nil
}

func summarizeAttempts(attempts []timetable.AttemptResult) []models.AttemptSummary {
	out := make([]models.AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		summary := models.AttemptSummary{Index: a.Index, Seed: a.Seed}
		if a.Result != nil {
			summary.Success = a.Result.Success
			summary.HoursPlaced = a.Result.HoursPlaced
			summary.Quality = a.Result.Quality
		}
		if a.Err != nil {
			summary.Error = a.Err.Error()
		}
		out = append(out, summary)
	}
	return out
}
