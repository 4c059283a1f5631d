package dto

import (
	"time"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
)

// ObligationInput is one row of teaching demand.
type ObligationInput struct {
	Teacher string `json:"teacher" validate:"required"`
	Class   string `json:"class" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Hours   int    `json:"hours" validate:"gte=0,lte=40"`
}

// GenerateRequest starts a generation run, synchronously or as a job.
type GenerateRequest struct {
	Obligations []ObligationInput `json:"obligations" validate:"required,min=1,dive"`
	Attempts    int               `json:"attempts" validate:"omitempty,min=1,max=64"`
	Seed        *int64            `json:"seed"`
	Repair      *bool             `json:"repair"`
}

// AttemptReport summarises one attempt in a synchronous response.
type AttemptReport = models.AttemptSummary

// GenerateResponse is returned by the synchronous generate endpoint.
type GenerateResponse struct {
	Result      timetable.GenerationResult `json:"result"`
	TeacherView timetable.TeacherView      `json:"teacherView"`
	ClassView   timetable.ClassView        `json:"classView"`
	BestAttempt int                        `json:"bestAttempt"`
	Attempts    []AttemptReport            `json:"attempts"`
}

// GridCell is one occupied cell of a posted teacher grid.
type GridCell struct {
	Class   string `json:"class" validate:"required"`
	Subject string `json:"subject"`
}

// ResolveRequest moves a teacher's lesson and asks for a conflict-free
// cascade. An empty To tries every free column of the teacher.
type ResolveRequest struct {
	Grid    map[string]map[string]GridCell `json:"grid" validate:"required,min=1"`
	Teacher string                         `json:"teacher" validate:"required"`
	From    string                         `json:"from" validate:"required"`
	To      []string                       `json:"to" validate:"omitempty,dive,required"`
}

// ResolveResponse carries the best resolution and every seed's outcome.
type ResolveResponse struct {
	Seed       string                         `json:"seed"`
	Iterations int                            `json:"iterations"`
	Quality    int                            `json:"quality"`
	History    []timetable.Move               `json:"history"`
	Grid       map[string]map[string]GridCell `json:"grid"`
	Seeds      []timetable.SeedReport         `json:"seeds"`
}

// ListJobsQuery filters the job listing.
type ListJobsQuery struct {
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"page_size" json:"pageSize"`
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=QUEUED PROCESSING FINISHED FAILED"`
}

// JobResponse is the public view of a generation job.
type JobResponse struct {
	ID            string           `json:"id"`
	Status        models.JobStatus `json:"status"`
	Progress      int              `json:"progress"`
	Stage         models.JobStage  `json:"stage"`
	HoursRequired int              `json:"hoursRequired"`
	HoursPlaced   int              `json:"hoursPlaced"`
	Attempts      int              `json:"attempts"`
	Error         *string          `json:"error,omitempty"`
	CreatedBy     string           `json:"createdBy"`
	CreatedAt     time.Time        `json:"createdAt"`
	FinishedAt    *time.Time       `json:"finishedAt,omitempty"`
}

// NewJobResponse projects a job row.
func NewJobResponse(job *models.GenerationJob) JobResponse {
	var jobErr *string
	if job.Error != nil && *job.Error != "" {
		jobErr = job.Error
	}
	return JobResponse{
		ID:            job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		Stage:         job.Stage,
		HoursRequired: job.HoursRequired,
		HoursPlaced:   job.HoursPlaced,
		Attempts:      job.Attempts,
		Error:         jobErr,
		CreatedBy:     job.CreatedBy,
		CreatedAt:     job.CreatedAt,
		FinishedAt:    job.FinishedAt,
	}
}

// UploadSummary reports how an uploaded obligations file was read.
type UploadSummary struct {
	Rows    int `json:"rows"`
	Dropped int `json:"dropped"`
	Merged  int `json:"merged"`
}

// UploadJobResponse is returned after a CSV upload was queued.
type UploadJobResponse struct {
	Job    JobResponse   `json:"job"`
	Upload UploadSummary `json:"upload"`
}

// ExportRequest asks for a rendered view of a finished job.
type ExportRequest struct {
	View   string `json:"view" validate:"required,oneof=teacher class"`
	Format string `json:"format" validate:"required,oneof=csv pdf html"`
}

// ExportResponse carries the signed download link.
type ExportResponse struct {
	View      string    `json:"view"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenRequest exchanges the operator key for an access token.
type TokenRequest struct {
	OperatorKey string          `json:"operatorKey" validate:"required"`
	Subject     string          `json:"subject" validate:"required,max=64"`
	Role        models.UserRole `json:"role" validate:"required,oneof=ADMIN VIEWER"`
}

// TokenResponse is an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
