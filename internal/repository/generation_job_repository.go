package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/juan-barragan/oraccio/internal/models"
)

const jobSummaryColumns = `id, status, progress, stage, hours_required, hours_placed, attempts, error, created_by, created_at, updated_at, finished_at`

// GenerationJobRepository persists generation jobs.
type GenerationJobRepository struct {
	db *sqlx.DB
}

func NewGenerationJobRepository(db *sqlx.DB) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

// Create inserts job, filling id, status and timestamps when unset.
func (r *GenerationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.Stage == "" {
		job.Stage = models.StageQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	const query = `INSERT INTO generation_jobs (id, status, progress, stage, request, hours_required, attempts, created_by, created_at, updated_at)
VALUES (:id, :status, :progress, :stage, :request, :hours_required, :attempts, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create generation job: %w", err)
	}
	return nil
}

// GetByID returns the full job row including request and result.
func (r *GenerationJobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	const query = `SELECT ` + jobSummaryColumns + `, request, result FROM generation_jobs WHERE id = $1`
	var job models.GenerationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	return &job, nil
}

// UpdateJobParams lists the mutable fields; nil fields are left alone.
type UpdateJobParams struct {
	Status      *models.JobStatus
	Progress    *int
	Stage       *models.JobStage
	Result      *models.JobResult
	Error       *string
	HoursPlaced *int
	FinishedAt  *time.Time
}

// Update persists the provided changes and bumps updated_at.
func (r *GenerationJobRepository) Update(ctx context.Context, id string, params UpdateJobParams) error {
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.Stage != nil {
		add("stage", *params.Stage)
	}
	if params.Result != nil {
		add("result", *params.Result)
	}
	if params.Error != nil {
		add("error", *params.Error)
	}
	if params.HoursPlaced != nil {
		add("hours_placed", *params.HoursPlaced)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE generation_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update generation job: %w", err)
	}
	return nil
}

// JobFilter narrows List.
type JobFilter struct {
	Status   models.JobStatus
	Page     int
	PageSize int
}

// List returns job summaries newest first, without request or result, and
// the total count matching the filter.
func (r *GenerationJobRepository) List(ctx context.Context, filter JobFilter) ([]models.GenerationJob, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	where := ""
	args := []interface{}{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = " WHERE status = $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM generation_jobs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count generation jobs: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM generation_jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobSummaryColumns, where, len(args)-1, len(args))
	var jobs []models.GenerationJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list generation jobs: %w", err)
	}
	return jobs, total, nil
}

// ListByStatus fetches the oldest jobs in status, used to recover work
// after a restart.
func (r *GenerationJobRepository) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + jobSummaryColumns + ` FROM generation_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobs []models.GenerationJob
	if err := r.db.SelectContext(ctx, &jobs, query, status, limit); err != nil {
		return nil, fmt.Errorf("list %s generation jobs: %w", status, err)
	}
	return jobs, nil
}

// Delete removes a job row. It reports whether a row existed.
func (r *GenerationJobRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete generation job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete generation job: %w", err)
	}
	return n > 0, nil
}

// DeleteFinishedBefore purges terminal jobs finished before cutoff and
// returns their ids.
func (r *GenerationJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `DELETE FROM generation_jobs WHERE status IN ('FINISHED', 'FAILED') AND finished_at < $1 RETURNING id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, cutoff); err != nil {
		return nil, fmt.Errorf("purge generation jobs: %w", err)
	}
	return ids, nil
}
