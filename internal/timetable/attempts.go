package timetable

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sourcegraph/conc/pool"
)

// AttemptsConfig controls RunAttempts.
type AttemptsConfig struct {
	Attempts int
	Workers  int
	Seed     int64
}

// AttemptResult is one finished (or skipped) attempt.
type AttemptResult struct {
	Index   int               `json:"index"`
	Seed    int64             `json:"seed"`
	Order   ScanOrder         `json:"order"`
	Result  *GenerationResult `json:"result,omitempty"`
	Session *Session          `json:"-"`
	Err     error             `json:"-"`
}

// AttemptsOutcome holds every attempt and the winner.
type AttemptsOutcome struct {
	Best     *AttemptResult
	Attempts []AttemptResult
}

// ShuffledOrder permutes days and hours independently with seed.
func ShuffledOrder(cal Calendar, seed int64) ScanOrder {
	order := CanonicalOrder(cal)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(order.Days), func(i, j int) { order.Days[i], order.Days[j] = order.Days[j], order.Days[i] })
	rng.Shuffle(len(order.Hours), func(i, j int) { order.Hours[i], order.Hours[j] = order.Hours[j], order.Hours[i] })
	return order
}

// RunAttempts generates cfg.Attempts independent schedules in parallel.
// Attempt 0 scans the calendar canonically; attempt i shuffles it with
// cfg.Seed+i. The winner places the most hours, lowest index first on
// ties. An *InvariantError from any attempt fails the whole run. ctx is
// only checked before an attempt starts.
func RunAttempts(ctx context.Context, obligations []Obligation, cfg AttemptsConfig, opts ...Option) (*AttemptsOutcome, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Workers <= 0 || cfg.Workers > cfg.Attempts {
		cfg.Workers = cfg.Attempts
	}

	probe, err := NewSession(obligations, opts...)
	if err != nil {
		return nil, err
	}
	cal := probe.Rules().Calendar

	results := make([]AttemptResult, cfg.Attempts)
	p := pool.New().WithMaxGoroutines(cfg.Workers)
	for i := 0; i < cfg.Attempts; i++ {
		i := i
		p.Go(func() {
			attempt := AttemptResult{Index: i, Seed: cfg.Seed + int64(i)}
			if i == 0 {
				attempt.Order = CanonicalOrder(cal)
			} else {
				attempt.Order = ShuffledOrder(cal, attempt.Seed)
			}
			if err := ctx.Err(); err != nil {
				attempt.Err = err
				results[i] = attempt
				return
			}

			sessionOpts := append(append([]Option(nil), opts...), WithScanOrder(attempt.Order))
			session, err := NewSession(obligations, sessionOpts...)
			if err != nil {
				attempt.Err = err
				results[i] = attempt
				return
			}
			attempt.Session = session
			attempt.Result, attempt.Err = session.Generate()
			results[i] = attempt
		})
	}
	p.Wait()

	return selectBest(results)
}

// selectBest picks the attempt placing the most hours. An invariant
// violation in any attempt fails the run; other attempt errors only
// disqualify their own attempt.
func selectBest(results []AttemptResult) (*AttemptsOutcome, error) {
	outcome := &AttemptsOutcome{Attempts: results}
	var firstErr error
	for i := range results {
		var invariant *InvariantError
		if errors.As(results[i].Err, &invariant) {
			return outcome, fmt.Errorf("attempt %d: %w", results[i].Index, results[i].Err)
		}
		if results[i].Err != nil {
			if firstErr == nil {
				firstErr = results[i].Err
			}
			continue
		}
		if outcome.Best == nil || results[i].Result.HoursPlaced > outcome.Best.Result.HoursPlaced {
			outcome.Best = &results[i]
		}
	}
	if outcome.Best == nil {
		return outcome, fmt.Errorf("all %d attempts failed: %w", len(results), firstErr)
	}
	return outcome, nil
}
