package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/dto"
	"github.com/juan-barragan/oraccio/internal/loader"
	"github.com/juan-barragan/oraccio/internal/middleware"
	"github.com/juan-barragan/oraccio/internal/models"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
	"github.com/juan-barragan/oraccio/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateRequest) (*dto.GenerateResponse, error)
	Submit(ctx context.Context, req dto.GenerateRequest, actor string) (*dto.JobResponse, error)
	Status(ctx context.Context, id string) (*dto.JobResponse, error)
	Result(ctx context.Context, id string) (*models.JobResult, error)
	List(ctx context.Context, query dto.ListJobsQuery) ([]dto.JobResponse, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id string, req dto.ExportRequest) (*dto.ExportResponse, error)
	Resolve(ctx context.Context, req dto.ResolveRequest) (*dto.ResolveResponse, error)
}

// TimetableHandler exposes generation, job and resolver endpoints.
type TimetableHandler struct {
	service   timetableService
	logger    *zap.Logger
	maxUpload int64
}

// NewTimetableHandler constructs the handler. maxUpload caps CSV uploads in bytes.
func NewTimetableHandler(svc timetableService, maxUpload int64, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 4 << 20
	}
	return &TimetableHandler{service: svc, logger: logger, maxUpload: maxUpload}
}

// Generate godoc
// @Summary Generate a timetable synchronously
// @Description Runs the placement engine inline. Large inputs must go through /timetables/jobs.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Obligations"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid generate payload"))
		return
	}
	res, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// Submit godoc
// @Summary Queue a generation job
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Obligations"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *TimetableHandler) Submit(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid job payload"))
		return
	}
	job, err := h.service.Submit(c.Request.Context(), req, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Upload godoc
// @Summary Queue a generation job from an obligations CSV
// @Tags Timetables
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Obligations CSV"
// @Param attempts formData int false "Number of attempts"
// @Param seed formData int false "Base seed"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /timetables/jobs/upload [post]
func (h *TimetableHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > h.maxUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "obligations file too large"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	obligations, report, err := loader.ReadObligations(src, h.logger)
	if err != nil {
		response.Error(c, appErrors.Validation(err, err.Error()))
		return
	}

	req := dto.GenerateRequest{Obligations: make([]dto.ObligationInput, 0, len(obligations))}
	for _, ob := range obligations {
		req.Obligations = append(req.Obligations, dto.ObligationInput{
			Teacher: ob.Teacher, Class: ob.Class, Subject: ob.Subject, Hours: ob.Hours,
		})
	}
	if raw := strings.TrimSpace(c.PostForm("attempts")); raw != "" {
		attempts, convErr := strconv.Atoi(raw)
		if convErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "attempts must be an integer"))
			return
		}
		req.Attempts = attempts
	}
	if raw := strings.TrimSpace(c.PostForm("seed")); raw != "" {
		seed, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "seed must be an integer"))
			return
		}
		req.Seed = &seed
	}

	job, err := h.service.Submit(c.Request.Context(), req, actorOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.UploadJobResponse{
		Job:    *job,
		Upload: dto.UploadSummary{Rows: report.Rows, Dropped: report.Dropped, Merged: report.Merged},
	})
}

// List godoc
// @Summary List generation jobs
// @Tags Timetables
// @Produce json
// @Param status query string false "QUEUED, PROCESSING, FINISHED or FAILED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query"))
		return
	}
	jobs, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// Status godoc
// @Summary Get job status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Result godoc
// @Summary Get the result of a finished job
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/jobs/{id}/result [get]
func (h *TimetableHandler) Result(c *gin.Context) {
	result, err := h.service.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Delete godoc
// @Summary Delete a job with its exports
// @Tags Timetables
// @Param id path string true "Job ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Render a view of a finished job
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.ExportRequest true "View and format"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/jobs/{id}/exports [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid export payload"))
		return
	}
	res, err := h.service.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Resolve godoc
// @Summary Move a lesson and resolve the resulting conflicts
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ResolveRequest true "Teacher grid and move"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/resolve [post]
func (h *TimetableHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid resolve payload"))
		return
	}
	res, err := h.service.Resolve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

func actorOf(c *gin.Context) string {
	if claims := middleware.Claims(c); claims != nil {
		return claims.Subject
	}
	return ""
}
