package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/juan-barragan/oraccio/internal/timetable"
)

// JobStatus captures the lifecycle of a generation job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further progress will be made.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// JobStage names the step a running job is in.
type JobStage string

const (
	StageQueued         JobStage = "queued"
	StageInitialization JobStage = "initialization"
	StageDataLoading    JobStage = "data_loading"
	StageAlgorithmStart JobStage = "algorithm_start"
	StagePostProcessing JobStage = "post_processing"
	StageFinalization   JobStage = "finalization"
	StageDone           JobStage = "done"
)

// Progress is the percentage reported when a job enters the stage.
func (s JobStage) Progress() int {
	switch s {
	case StageInitialization:
		return 10
	case StageDataLoading:
		return 20
	case StageAlgorithmStart:
		return 30
	case StagePostProcessing:
		return 80
	case StageFinalization:
		return 95
	case StageDone:
		return 100
	default:
		return 0
	}
}

// GenerationJob is a persisted asynchronous generation run.
type GenerationJob struct {
	ID            string     `db:"id" json:"id"`
	Status        JobStatus  `db:"status" json:"status"`
	Progress      int        `db:"progress" json:"progress"`
	Stage         JobStage   `db:"stage" json:"stage"`
	Request       JobRequest `db:"request" json:"request"`
	Result        *JobResult `db:"result" json:"result,omitempty"`
	Error         *string    `db:"error" json:"error,omitempty"`
	HoursRequired int        `db:"hours_required" json:"hours_required"`
	HoursPlaced   int        `db:"hours_placed" json:"hours_placed"`
	Attempts      int        `db:"attempts" json:"attempts"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// ObligationRecord is one teaching obligation as submitted.
type ObligationRecord struct {
	Teacher string `json:"teacher"`
	Class   string `json:"class"`
	Subject string `json:"subject"`
	Hours   int    `json:"hours"`
}

// JobRequest is the generation input persisted as JSONB.
type JobRequest struct {
	Obligations []ObligationRecord `json:"obligations"`
	Attempts    int                `json:"attempts"`
	Seed        int64              `json:"seed"`
	Repair      bool               `json:"repair"`
}

// EngineObligations converts the records for the engine.
func (r JobRequest) EngineObligations() []timetable.Obligation {
	out := make([]timetable.Obligation, len(r.Obligations))
	for i, o := range r.Obligations {
		out[i] = timetable.Obligation{Teacher: o.Teacher, Class: o.Class, Subject: o.Subject, Hours: o.Hours}
	}
	return out
}

// AttemptSummary condenses one attempt of a run.
type AttemptSummary struct {
	Index       int    `json:"index"`
	Seed        int64  `json:"seed"`
	Success     bool   `json:"success"`
	HoursPlaced int    `json:"hours_placed"`
	Quality     int    `json:"quality"`
	Error       string `json:"error,omitempty"`
}

// JobResult is the outcome of a finished run persisted as JSONB.
type JobResult struct {
	BestAttempt int                        `json:"best_attempt"`
	Seed        int64                      `json:"seed"`
	Calendar    timetable.Calendar         `json:"calendar"`
	Generation  timetable.GenerationResult `json:"generation"`
	TeacherView timetable.TeacherView      `json:"teacher_view"`
	ClassView   timetable.ClassView        `json:"class_view"`
	Attempts    []AttemptSummary           `json:"attempts"`
}

// Value marshals the request for persistence.
func (r JobRequest) Value() (driver.Value, error) {
	if r.Obligations == nil {
		r.Obligations = []ObligationRecord{}
	}
	return marshalJSON(r, "job request")
}

// Scan unmarshals JSONB into the request.
func (r *JobRequest) Scan(value interface{}) error {
	*r = JobRequest{}
	return scanJSON(value, r, "job request")
}

// Value marshals the result for persistence.
func (r JobResult) Value() (driver.Value, error) {
	return marshalJSON(r, "job result")
}

// Scan unmarshals JSONB into the result.
func (r *JobResult) Scan(value interface{}) error {
	*r = JobResult{}
	return scanJSON(value, r, "job result")
}

func marshalJSON(v interface{}, what string) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", what, err)
	}
	return data, nil
}

func scanJSON(value interface{}, dest interface{}, what string) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, what)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return nil
}
