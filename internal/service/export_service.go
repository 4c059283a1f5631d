package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/dto"
	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/timetable"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
	"github.com/juan-barragan/oraccio/pkg/export"
	"github.com/juan-barragan/oraccio/pkg/storage"
)

// Export views and formats.
const (
	ViewTeacher = "teacher"
	ViewClass   = "class"

	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

const weeklyTotalHeader = "Weekly_Total"

type exportStorage interface {
	Save(jobID, name string, data []byte) (string, error)
	Open(rel string) (io.ReadCloser, error)
	DeleteJob(jobID string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
}

// ExportDownload is an opened export ready to be streamed.
type ExportDownload struct {
	Reader      io.ReadCloser
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService renders timetable views and hands out signed download links.
type ExportService struct {
	storage exportStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	html    *export.HTMLExporter
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store exportStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		storage: store,
		signer:  signer,
		csv:     export.NewCSVExporter(0),
		pdf:     export.NewPDFExporter(),
		html:    export.NewHTMLExporter(),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Export renders one view of a finished job, stores it and signs a link.
func (s *ExportService) Export(ctx context.Context, job *models.GenerationJob, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if job.Status != models.JobStatusFinished || job.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrJobNotReady, "exports are available once the job has finished")
	}
	cal := calendarOf(job.Result)

	var data export.Dataset
	switch req.View {
	case ViewTeacher:
		data = TeacherDataset(job.Result.TeacherView, cal)
	case ViewClass:
		data = ClassDataset(job.Result.ClassView, cal)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported view")
	}

	title := fmt.Sprintf("Orario per %s - job %s", viewLabel(req.View), job.ID)
	payload, err := s.Render(data, req.Format, title, SummaryNotes(job.Result.Generation)...)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_%s.%s", req.View, s.now().UTC().Format("20060102_150405"), req.Format)
	rel, err := s.storage.Save(job.ID, name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, grant, err := s.signer.Sign(job.ID, rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	s.logger.Sugar().Infow("export stored", "job_id", job.ID, "view", req.View, "format", req.Format, "path", rel)
	return &dto.ExportResponse{
		View:      req.View,
		Format:    req.Format,
		URL:       fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Render encodes data in format.
func (s *ExportService) Render(data export.Dataset, format, title string, notes ...string) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(data)
	case FormatPDF:
		payload, err = s.pdf.Render(data, title)
	case FormatHTML:
		payload, err = s.html.Render(data, title, notes...)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}

// Open resolves a download token to the stored file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	grant, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	reader, err := s.storage.Open(grant.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	filename := path.Base(grant.Path)
	return &ExportDownload{
		Reader:      reader,
		Filename:    filename,
		ContentType: contentType(path.Ext(filename)),
		ExpiresAt:   grant.ExpiresAt,
	}, nil
}

// DeleteJob removes every stored export of a job.
func (s *ExportService) DeleteJob(jobID string) error {
	return s.storage.DeleteJob(jobID)
}

// Cleanup removes exports whose links can no longer be valid.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.signer.TTL())
}

// TeacherDataset lays a teacher view out one row per teacher, one column
// per slot, the class in each occupied cell.
func TeacherDataset(view timetable.TeacherView, cal timetable.Calendar) export.Dataset {
	teachers := make([]string, 0, len(view))
	for teacher := range view {
		teachers = append(teachers, teacher)
	}
	sort.Strings(teachers)

	rows := make([]map[string]string, 0, len(teachers))
	for _, teacher := range teachers {
		cells := make(map[string]string, len(view[teacher]))
		for slot, lesson := range view[teacher] {
			cells[slot.Column()] = lesson.Class
		}
		rows = append(rows, gridRow("Teacher", teacher, cells, cal))
	}
	return export.Dataset{Headers: gridHeaders("Teacher", cal), Rows: rows}
}

// ClassDataset lays a class view out one row per class with
// "teacher (subject)" cells.
func ClassDataset(view timetable.ClassView, cal timetable.Calendar) export.Dataset {
	classes := make([]string, 0, len(view))
	for class := range view {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rows := make([]map[string]string, 0, len(classes))
	for _, class := range classes {
		cells := make(map[string]string, len(view[class]))
		for slot, lesson := range view[class] {
			cells[slot.Column()] = lessonLabel(lesson.Teacher, lesson.Subject)
		}
		rows = append(rows, gridRow("Class", class, cells, cal))
	}
	return export.Dataset{Headers: gridHeaders("Class", cal), Rows: rows}
}

// GridDataset renders a teacher grid with "class (subject)" cells, the
// format ReadTeacherGrid accepts, and highlights both cells of every move
// in history.
func GridDataset(grid *timetable.TeacherGrid, history []timetable.Move) export.Dataset {
	cal := grid.Calendar()
	teachers := grid.Teachers()
	rows := make([]map[string]string, 0, len(teachers))
	for _, teacher := range teachers {
		cells := make(map[string]string)
		for _, column := range grid.Columns() {
			if lesson := grid.At(teacher, column); lesson != nil {
				cells[column] = lessonLabel(lesson.Class, lesson.Subject)
			}
		}
		rows = append(rows, gridRow("Teacher", teacher, cells, cal))
	}

	highlights := make(map[string]map[string]bool)
	for _, move := range history {
		if highlights[move.Teacher] == nil {
			highlights[move.Teacher] = make(map[string]bool)
		}
		highlights[move.Teacher][move.From] = true
		highlights[move.Teacher][move.To] = true
	}
	return export.Dataset{Headers: gridHeaders("Teacher", cal), Rows: rows, Highlights: highlights}
}

func gridHeaders(key string, cal timetable.Calendar) []string {
	headers := append([]string{key}, cal.Columns()...)
	return append(headers, weeklyTotalHeader)
}

func gridRow(key, name string, cells map[string]string, cal timetable.Calendar) map[string]string {
	row := make(map[string]string, len(cells)+2)
	row[key] = name
	total := 0
	for _, column := range cal.Columns() {
		if v, ok := cells[column]; ok && v != "" {
			row[column] = v
			total++
		}
	}
	row[weeklyTotalHeader] = strconv.Itoa(total)
	return row
}

func lessonLabel(who, subject string) string {
	if subject == "" {
		return who
	}
	return fmt.Sprintf("%s (%s)", who, subject)
}

// SummaryNotes lists the placement figures shown under rendered tables.
func SummaryNotes(res timetable.GenerationResult) []string {
	notes := []string{
		fmt.Sprintf("Ore assegnate: %d/%d (%.1f%%)", res.HoursPlaced, res.HoursRequired, res.SuccessRate*100),
		fmt.Sprintf("Qualita: %d", res.Quality),
	}
	for _, f := range res.Failed {
		notes = append(notes, fmt.Sprintf("Non assegnate: %s %s %s x%d", f.Teacher, f.Class, f.Subject, f.Remaining))
	}
	return notes
}

func calendarOf(result *models.JobResult) timetable.Calendar {
	if len(result.Calendar.Days) > 0 && len(result.Calendar.Hours) > 0 {
		return result.Calendar
	}
	return timetable.DefaultCalendar()
}

func viewLabel(view string) string {
	if view == ViewClass {
		return "classe"
	}
	return "docente"
}

func contentType(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
