package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type jobPurger interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type exportJanitor interface {
	DeleteJob(jobID string) error
	Cleanup() ([]string, error)
}

// RetentionReport summarises one retention sweep.
type RetentionReport struct {
	FilesRemoved int
	JobsPurged   int
}

// RetentionService purges expired exports and old finished jobs on a cron
// schedule.
type RetentionService struct {
	jobs     jobPurger
	exports  exportJanitor
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
	schedule *cron.Cron
	now      func() time.Time
}

// NewRetentionService builds the sweeper. A zero jobTTL keeps jobs forever.
func NewRetentionService(jobs jobPurger, exports exportJanitor, cache *CacheService, jobTTL time.Duration, logger *zap.Logger) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{
		jobs:     jobs,
		exports:  exports,
		cache:    cache,
		ttl:      jobTTL,
		logger:   logger,
		schedule: cron.New(cron.WithLocation(time.UTC)),
		now:      time.Now,
	}
}

// Start registers the sweep under spec ("@every 1h", "0 3 * * *") and starts the scheduler.
func (s *RetentionService) Start(spec string) error {
	if _, err := s.schedule.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule retention sweep %q: %w", spec, err)
	}
	s.schedule.Start()
	s.logger.Sugar().Infow("retention sweep scheduled", "spec", spec, "job_ttl", s.ttl.String())
	return nil
}

// Stop halts the scheduler and returns a context done once a running sweep ends.
func (s *RetentionService) Stop() context.Context {
	return s.schedule.Stop()
}

// Sweep runs one retention pass.
func (s *RetentionService) Sweep(ctx context.Context) RetentionReport {
	var report RetentionReport

	removed, err := s.exports.Cleanup()
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "error", err)
	}
	report.FilesRemoved = len(removed)

	if s.ttl > 0 && s.jobs != nil {
		ids, err := s.jobs.DeleteFinishedBefore(ctx, s.now().Add(-s.ttl))
		if err != nil {
			s.logger.Sugar().Warnw("job purge failed", "error", err)
		}
		for _, id := range ids {
			if err := s.exports.DeleteJob(id); err != nil {
				s.logger.Sugar().Warnw("failed to delete exports of purged job", "job_id", id, "error", err)
			}
		}
		s.cache.Forget(ctx, ids...)
		report.JobsPurged = len(ids)
	}

	if report.FilesRemoved > 0 || report.JobsPurged > 0 {
		s.logger.Sugar().Infow("retention sweep finished", "files_removed", report.FilesRemoved, "jobs_purged", report.JobsPurged)
	}
	return report
}
