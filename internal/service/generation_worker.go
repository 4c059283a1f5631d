package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/repository"
	"github.com/juan-barragan/oraccio/internal/timetable"
	"github.com/juan-barragan/oraccio/pkg/jobs"
	"github.com/juan-barragan/oraccio/pkg/logger"
)

type generationJobUpdater interface {
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateJobParams) error
}

// GenerationWorker bridges queued jobs to the Generator.
type GenerationWorker struct {
	repo      generationJobUpdater
	generator *Generator
	cache     *CacheService
	metrics   *MetricsService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewGenerationWorker constructs a worker.
func NewGenerationWorker(repo generationJobUpdater, generator *Generator, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, log *zap.Logger) *GenerationWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerationWorker{
		repo:      repo,
		generator: generator,
		cache:     cache,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
		logger:    log,
	}
}

// Handle processes a queue job. Errors that cannot be fixed by running
// again are returned as jobs.Permanent.
func (w *GenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	log := logger.ForJob(w.logger, job.ID, job.Attempt)

	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("generation job vanished before it ran")
			return nil
		}
		return err
	}
	if record.Status.Terminal() {
		log.Debug("generation job already terminal", zap.String("status", string(record.Status)))
		return nil
	}

	processing := models.JobStatusProcessing
	if err := w.advance(ctx, job.ID, models.StageInitialization, &processing); err != nil {
		return err
	}

	if err := w.advance(ctx, job.ID, models.StageDataLoading, nil); err != nil {
		return err
	}
	request := record.Request
	if len(request.Obligations) == 0 {
		return jobs.Permanent(fmt.Errorf("%w: job has no obligations", timetable.ErrInvalidObligation))
	}

	if err := w.advance(ctx, job.ID, models.StageAlgorithmStart, nil); err != nil {
		return err
	}
	start := time.Now()
	result, _, err := w.generator.Run(ctx, request)
	if err != nil {
		var invariant *timetable.InvariantError
		if errors.As(err, &invariant) || errors.Is(err, timetable.ErrInvalidObligation) {
			return jobs.Permanent(err)
		}
		w.requeue(ctx, job.ID, err)
		return err
	}

	if err := w.advance(ctx, job.ID, models.StagePostProcessing, nil); err != nil {
		return err
	}
	w.metrics.ObserveGeneration("job", &result.Generation, time.Since(start))

	if err := w.advance(ctx, job.ID, models.StageFinalization, nil); err != nil {
		return err
	}
	finished := models.JobStatusFinished
	done := models.StageDone
	progress := done.Progress()
	placed := result.Generation.HoursPlaced
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateJobParams{
		Status:      &finished,
		Progress:    &progress,
		Stage:       &done,
		Result:      result,
		Error:       &clear,
		HoursPlaced: &placed,
		FinishedAt:  &now,
	}); err != nil {
		return fmt.Errorf("store result of job %s: %w", job.ID, err)
	}
	w.cache.Store(ctx, job.ID, result, w.cacheTTL)
	w.metrics.ObserveJob(models.JobStatusFinished)

	log.Info("generation job finished",
		zap.Int("hours_placed", placed),
		zap.Int("hours_required", result.Generation.HoursRequired),
		zap.Bool("success", result.Generation.Success),
	)
	return nil
}

// GiveUp marks a job FAILED once the queue stops retrying it.
func (w *GenerationWorker) GiveUp(ctx context.Context, job jobs.Job, cause error) {
	if ctx.Err() != nil {
		// shutting down; RecoverPending picks the job up on the next boot
		return
	}
	failed := models.JobStatusFailed
	done := models.StageDone
	progress := done.Progress()
	msg := cause.Error()
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateJobParams{
		Status:     &failed,
		Progress:   &progress,
		Stage:      &done,
		Error:      &msg,
		FinishedAt: &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	w.metrics.ObserveJob(models.JobStatusFailed)
}

func (w *GenerationWorker) advance(ctx context.Context, id string, stage models.JobStage, status *models.JobStatus) error {
	progress := stage.Progress()
	if err := w.repo.Update(ctx, id, repository.UpdateJobParams{
		Status:   status,
		Progress: &progress,
		Stage:    &stage,
	}); err != nil {
		return fmt.Errorf("advance job %s to %s: %w", id, stage, err)
	}
	return nil
}

func (w *GenerationWorker) requeue(ctx context.Context, id string, cause error) {
	queued := models.JobStatusQueued
	stage := models.StageQueued
	progress := 0
	msg := cause.Error()
	if err := w.repo.Update(ctx, id, repository.UpdateJobParams{
		Status:   &queued,
		Progress: &progress,
		Stage:    &stage,
		Error:    &msg,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job queued", "job_id", id, "error", err)
	}
}
