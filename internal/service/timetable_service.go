package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/dto"
	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/repository"
	"github.com/juan-barragan/oraccio/internal/timetable"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
	"github.com/juan-barragan/oraccio/pkg/jobs"
)

// JobTypeGenerate tags generation jobs on the queue.
const JobTypeGenerate = "timetable.generate"

type generationJobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateJobParams) error
	List(ctx context.Context, filter repository.JobFilter) ([]models.GenerationJob, int, error)
	ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.GenerationJob, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportRenderer interface {
	Export(ctx context.Context, job *models.GenerationJob, req dto.ExportRequest) (*dto.ExportResponse, error)
	DeleteJob(jobID string) error
}

// TimetableServiceConfig tunes the timetable use cases.
type TimetableServiceConfig struct {
	// Attempts holds the defaults a request may override.
	Attempts timetable.AttemptsConfig
	// SyncMaxHours caps the synchronous endpoint; larger inputs must go
	// through a job. Zero means no cap.
	SyncMaxHours int
	CacheTTL     time.Duration
}

// TimetableService exposes generation, resolution and the job lifecycle.
type TimetableService struct {
	repo      generationJobStore
	queue     jobDispatcher
	cache     *CacheService
	exports   exportRenderer
	metrics   *MetricsService
	generator *Generator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
}

// NewTimetableService constructs the service.
func NewTimetableService(
	repo generationJobStore,
	queue jobDispatcher,
	cache *CacheService,
	exports exportRenderer,
	metrics *MetricsService,
	generator *Generator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Attempts.Attempts <= 0 {
		cfg.Attempts.Attempts = 1
	}
	return &TimetableService{
		repo:      repo,
		queue:     queue,
		cache:     cache,
		exports:   exports,
		metrics:   metrics,
		generator: generator,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate runs a request synchronously and returns the best attempt.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateRequest) (*dto.GenerateResponse, error) {
	request, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if hours := timetable.TotalHours(request.EngineObligations()); s.cfg.SyncMaxHours > 0 && hours > s.cfg.SyncMaxHours {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("%d hours exceed the synchronous limit of %d, submit a job instead", hours, s.cfg.SyncMaxHours))
	}

	start := time.Now()
	result, _, err := s.generator.Run(ctx, request)
	if err != nil {
		return nil, mapGenerationError(err)
	}
	s.metrics.ObserveGeneration("sync", &result.Generation, time.Since(start))

	return &dto.GenerateResponse{
		Result:      result.Generation,
		TeacherView: result.TeacherView,
		ClassView:   result.ClassView,
		BestAttempt: result.BestAttempt,
		Attempts:    result.Attempts,
	}, nil
}

// Submit persists a generation job and queues it.
func (s *TimetableService) Submit(ctx context.Context, req dto.GenerateRequest, actor string) (*dto.JobResponse, error) {
	request, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		Request:       request,
		HoursRequired: timetable.TotalHours(request.EngineObligations()),
		Attempts:      request.Attempts,
		CreatedBy:     actor,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeGenerate}); err != nil {
		msg := "failed to enqueue job"
		s.markFailed(ctx, job.ID, msg)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}

	s.logger.Sugar().Infow("generation job queued", "job_id", job.ID, "hours", job.HoursRequired, "attempts", job.Attempts, "created_by", actor)
	resp := dto.NewJobResponse(job)
	return &resp, nil
}

// Status reports a job's progress.
func (s *TimetableService) Status(ctx context.Context, id string) (*dto.JobResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewJobResponse(job)
	return &resp, nil
}

// Result returns the outcome of a finished job, from cache when possible.
func (s *TimetableService) Result(ctx context.Context, id string) (*models.JobResult, error) {
	if cached, hit := s.cache.Lookup(ctx, id); hit {
		return cached, nil
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status == models.JobStatusFailed:
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("generation job failed: %s", lo.FromPtr(job.Error)))
	case job.Status != models.JobStatusFinished || job.Result == nil:
		return nil, appErrors.Clone(appErrors.ErrJobNotReady, fmt.Sprintf("generation job is %s (%d%%)", job.Status, job.Progress))
	}

	s.cache.Store(ctx, id, job.Result, s.cfg.CacheTTL)
	return job.Result, nil
}

// List pages through jobs newest first.
func (s *TimetableService) List(ctx context.Context, query dto.ListJobsQuery) ([]dto.JobResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "invalid list query")
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 || query.PageSize > 100 {
		query.PageSize = 20
	}

	rows, total, err := s.repo.List(ctx, repository.JobFilter{
		Status:   models.JobStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list generation jobs")
	}

	out := make([]dto.JobResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.NewJobResponse(&rows[i]))
	}
	return out, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Delete removes a job with its cached result and stored exports.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete generation job")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	s.cache.Forget(ctx, id)
	if err := s.exports.DeleteJob(id); err != nil {
		s.logger.Sugar().Warnw("failed to delete exports of job", "job_id", id, "error", err)
	}
	return nil
}

// Export renders a view of a finished job.
func (s *TimetableService) Export(ctx context.Context, id string, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid export request")
	}
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exports.Export(ctx, job, req)
}

// RecoverPending requeues jobs a previous process left queued or running.
func (s *TimetableService) RecoverPending(ctx context.Context) int {
	recovered := 0
	for _, status := range []models.JobStatus{models.JobStatusQueued, models.JobStatusProcessing} {
		pending, err := s.repo.ListByStatus(ctx, status, 100)
		if err != nil {
			s.logger.Sugar().Warnw("failed to recover generation jobs", "status", status, "error", err)
			continue
		}
		for _, job := range pending {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeGenerate}); err != nil {
				s.logger.Sugar().Warnw("failed to requeue generation job", "job_id", job.ID, "error", err)
				continue
			}
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.Sugar().Infow("generation jobs recovered", "count", recovered)
	}
	return recovered
}

// Resolve moves a teacher's lesson on a posted grid and returns the best
// conflict-free cascade.
func (s *TimetableService) Resolve(ctx context.Context, req dto.ResolveRequest) (*dto.ResolveResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid resolve request")
	}

	rules := s.generator.Rules()
	grid, err := GridFromCells(req.Grid, rules.Calendar)
	if err != nil {
		return nil, appErrors.Validation(err, err.Error())
	}
	if !grid.HasTeacher(req.Teacher) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s is not in the grid", req.Teacher))
	}
	if grid.At(req.Teacher, req.From) == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s has no lesson at %s", req.Teacher, req.From))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best, reports, err := timetable.NewResolver(rules, s.logger).ResolveBest(grid, req.Teacher, req.From, req.To)
	s.metrics.ObserveResolverSeeds(reports)
	if err != nil {
		return nil, mapResolveError(err)
	}

	return &dto.ResolveResponse{
		Seed:       best.Seed,
		Iterations: best.Iterations,
		Quality:    best.Quality,
		History:    best.History,
		Grid:       CellsFromGrid(best.Grid),
		Seeds:      reports,
	}, nil
}

// GridFromCells builds a teacher grid from posted cells.
func GridFromCells(cells map[string]map[string]dto.GridCell, cal timetable.Calendar) (*timetable.TeacherGrid, error) {
	grid := timetable.NewTeacherGrid(cal)
	for teacher, row := range cells {
		grid.AddTeacher(teacher)
		for column, cell := range row {
			if cell.Class == "" {
				continue
			}
			if err := grid.Set(teacher, column, &timetable.Lesson{Class: cell.Class, Subject: cell.Subject}); err != nil {
				return nil, err
			}
		}
	}
	return grid, nil
}

// CellsFromGrid is the inverse of GridFromCells.
func CellsFromGrid(grid *timetable.TeacherGrid) map[string]map[string]dto.GridCell {
	out := make(map[string]map[string]dto.GridCell)
	for _, teacher := range grid.Teachers() {
		row := make(map[string]dto.GridCell)
		for _, column := range grid.Columns() {
			if lesson := grid.At(teacher, column); lesson != nil {
				row[column] = dto.GridCell{Class: lesson.Class, Subject: lesson.Subject}
			}
		}
		out[teacher] = row
	}
	return out
}

// prepare validates a request and fills in the defaults.
func (s *TimetableService) prepare(req dto.GenerateRequest) (models.JobRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.JobRequest{}, appErrors.Validation(err, "invalid generation request")
	}

	attempts := overrideAttempts(s.cfg.Attempts, req.Attempts, req.Seed)
	repair := true
	if req.Repair != nil {
		repair = *req.Repair
	}
	request := models.JobRequest{
		Obligations: lo.Map(req.Obligations, func(o dto.ObligationInput, _ int) models.ObligationRecord {
			return models.ObligationRecord{Teacher: o.Teacher, Class: o.Class, Subject: o.Subject, Hours: o.Hours}
		}),
		Attempts: attempts.Attempts,
		Seed:     attempts.Seed,
		Repair:   repair,
	}

	if _, err := timetable.NewSession(request.EngineObligations(), timetable.WithRules(s.generator.Rules())); err != nil {
		return models.JobRequest{}, appErrors.Validation(err, err.Error())
	}
	return request, nil
}

func (s *TimetableService) load(ctx context.Context, id string) (*models.GenerationJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	return job, nil
}

func (s *TimetableService) markFailed(ctx context.Context, id, msg string) {
	status := models.JobStatusFailed
	stage := models.StageDone
	progress := stage.Progress()
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateJobParams{
		Status:     &status,
		Progress:   &progress,
		Stage:      &stage,
		Error:      &msg,
		FinishedAt: &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark job failed", "job_id", id, "error", err)
	}
}

func mapGenerationError(err error) error {
	var invariant *timetable.InvariantError
	switch {
	case errors.As(err, &invariant):
		return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status, invariant.Error())
	case errors.Is(err, timetable.ErrInvalidObligation):
		return appErrors.Validation(err, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation failed")
	}
}

func mapResolveError(err error) error {
	switch {
	case errors.Is(err, timetable.ErrNoSolutionFound):
		return appErrors.Wrap(err, appErrors.ErrNoSolutionFound.Code, appErrors.ErrNoSolutionFound.Status, appErrors.ErrNoSolutionFound.Message)
	case errors.Is(err, timetable.ErrUnknownColumn):
		return appErrors.Validation(err, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve failed")
	}
}
