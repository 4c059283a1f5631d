package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/models"
)

var jobColumns = []string{"id", "status", "progress", "stage", "hours_required", "hours_placed", "attempts", "error", "created_by", "created_at", "updated_at", "finished_at"}

func newJobRepoMock(t *testing.T) (*GenerationJobRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewGenerationJobRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestGenerationJobRepositoryCreateAndGet(t *testing.T) {
	repo, mock, cleanup := newJobRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generation_jobs")).
		WithArgs(sqlmock.AnyArg(), "QUEUED", 0, "queued", sqlmock.AnyArg(), 4, 2, "operator", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.GenerationJob{
		Request:       models.JobRequest{Obligations: []models.ObligationRecord{{Teacher: "ROSSI", Class: "1A", Subject: "MAT", Hours: 4}}, Attempts: 2},
		HoursRequired: 4,
		Attempts:      2,
		CreatedBy:     "operator",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	now := time.Now()
	rows := sqlmock.NewRows(append(append([]string{}, jobColumns...), "request", "result")).
		AddRow(job.ID, "FINISHED", 100, "done", 4, 4, 2, nil, "operator", now, now, now,
			`{"obligations":[{"teacher":"ROSSI","class":"1A","subject":"MAT","hours":4}],"attempts":2,"seed":0,"repair":true}`,
			`{"best_attempt":1,"seed":5,"generation":{"success":true,"hours_placed":4,"hours_required":4}}`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFinished, fetched.Status)
	assert.Equal(t, "ROSSI", fetched.Request.Obligations[0].Teacher)
	require.NotNil(t, fetched.Result)
	assert.Equal(t, 1, fetched.Result.BestAttempt)
	assert.True(t, fetched.Result.Generation.Success)
	assert.Nil(t, fetched.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryGetWithoutResult(t *testing.T) {
	repo, mock, cleanup := newJobRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(append(append([]string{}, jobColumns...), "request", "result")).
		AddRow("job-1", "PROCESSING", 30, "algorithm_start", 4, 0, 1, nil, "operator", now, now, nil, `{"obligations":[]}`, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE id = $1")).WithArgs("job-1").WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Nil(t, fetched.Result)
	assert.Nil(t, fetched.FinishedAt)
	assert.Equal(t, models.StageAlgorithmStart, fetched.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryUpdate(t *testing.T) {
	repo, mock, cleanup := newJobRepoMock(t)
	defer cleanup()

	status := models.JobStatusProcessing
	progress := 30
	stage := models.StageAlgorithmStart
	mock.ExpectExec(regexp.QuoteMeta("UPDATE generation_jobs SET status = $1, progress = $2, stage = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(status, progress, stage, sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateJobParams{
		Status:   &status,
		Progress: &progress,
		Stage:    &stage,
	}))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryList(t *testing.T) {
	repo, mock, cleanup := newJobRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM generation_jobs WHERE status = $1")).
		WithArgs(models.JobStatusFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(models.JobStatusFinished, 2, 2).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("job-3", "FINISHED", 100, "done", 10, 9, 4, nil, "operator", now, now, now))

	jobs, total, err := repo.List(context.Background(), JobFilter{Status: models.JobStatusFinished, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, 9, jobs[0].HoursPlaced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationJobRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newJobRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_jobs WHERE id = $1")).
		WithArgs("job-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err := repo.Delete(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = repo.Delete(context.Background(), "job-2")
	require.NoError(t, err)
	assert.False(t, existed)

	cutoff := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM generation_jobs WHERE status IN ('FINISHED', 'FAILED') AND finished_at < $1 RETURNING id")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-9"))
	ids, err := repo.DeleteFinishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-9"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
