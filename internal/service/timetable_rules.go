package service

import (
	"fmt"

	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/config"
)

// RulesFromConfig overlays the configured calendar and caps on the default
// rule set. Zero values keep the defaults.
func RulesFromConfig(cfg config.TimetableConfig) (timetable.Rules, error) {
	rules := timetable.DefaultRules()

	if len(cfg.Days) > 0 {
		rules.Calendar.Days = append([]string(nil), cfg.Days...)
	}
	if len(cfg.Hours) > 0 {
		rules.Calendar.Hours = append([]int(nil), cfg.Hours...)
	}
	overrideInt(&rules.MaxDailyHoursTeacher, cfg.MaxDailyHoursTeacher)
	overrideInt(&rules.MaxDailyHoursTeacherForClass, cfg.MaxDailyHoursTeacherForClass)
	overrideInt(&rules.MaxDailyHoursClass, cfg.MaxDailyHoursClass)
	overrideInt(&rules.ExtendedDailyHoursClass, cfg.ExtendedDailyHoursClass)
	overrideInt(&rules.MorningLastHour, cfg.MorningLastHour)
	overrideInt(&rules.MaxTryouts, cfg.MaxTryouts)
	overrideInt(&rules.ResolverMaxIterations, cfg.ResolverMaxIterations)
	overrideInt(&rules.MaxHolesPerDay, cfg.MaxHolesPerDay)

	if cfg.ExtendedDays != nil {
		rules.ExtendedDays = append([]string(nil), cfg.ExtendedDays...)
	}
	if cfg.LastHourAllowed != nil {
		allowed := make(map[string][]string, len(cfg.LastHourAllowed))
		for day, classes := range cfg.LastHourAllowed {
			allowed[day] = append([]string{}, classes...)
		}
		rules.LastHourAllowed = allowed
	}

	if err := rules.Validate(); err != nil {
		return timetable.Rules{}, fmt.Errorf("timetable rules: %w", err)
	}
	return rules, nil
}

// AttemptsFromConfig builds the attempt settings, letting a request override
// the count and seed.
func AttemptsFromConfig(cfg config.TimetableConfig, attempts int, seed *int64) timetable.AttemptsConfig {
	base := timetable.AttemptsConfig{Attempts: cfg.Attempts, Workers: cfg.AttemptWorkers, Seed: cfg.Seed}
	return overrideAttempts(base, attempts, seed)
}

func overrideAttempts(base timetable.AttemptsConfig, attempts int, seed *int64) timetable.AttemptsConfig {
	if attempts > 0 {
		base.Attempts = attempts
	}
	if seed != nil {
		base.Seed = *seed
	}
	if base.Attempts <= 0 {
		base.Attempts = 1
	}
	return base
}

func overrideInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
