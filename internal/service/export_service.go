package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sushil7090/moodle-backend/internal/dto"
	"github.com/Sushil7090/moodle-backend/internal/models"
	"github.com/Sushil7090/moodle-backend/pkg/export"
	"github.com/Sushil7090/moodle-backend/pkg/storage"
)

type reportBuilder interface {
	CourseCompletionBreakdown(ctx context.Context, courseID int64, policy string) (*dto.CompletionBreakdownResponse, error)
	ClassEngagementSummary(ctx context.Context, courseID int64) (*dto.EngagementResponse, error)
	ConsistencyReport(ctx context.Context, rangeKey, from, to string) (*dto.ConsistencyResponse, error)
	CoursesCompletionOverview(ctx context.Context, policy string) (*dto.CoursesOverviewResponse, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files. Exports
// run the same live report pipeline as the JSON endpoints; nothing is served
// from cached report data.
type ExportService struct {
	reports reportBuilder
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(reports reportBuilder, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports: reports,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.CourseID != nil {
		scope = fmt.Sprintf("course%d", *job.Params.CourseID)
	} else if job.Params.RangeKey != "" {
		scope = job.Params.RangeKey
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeCompletion:
		return s.buildCompletionDataset(ctx, job.Params)
	case models.ReportTypeEngagement:
		return s.buildEngagementDataset(ctx, job.Params)
	case models.ReportTypeConsistency:
		return s.buildConsistencyDataset(ctx, job.Params)
	case models.ReportTypeOverview:
		return s.buildOverviewDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildCompletionDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.CourseID == nil {
		return export.Dataset{}, "", fmt.Errorf("completion export requires a course id")
	}
	report, err := s.reports.CourseCompletionBreakdown(ctx, *params.CourseID, params.Policy)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([][]string, 0, report.TotalEnrolled)
	for _, bucket := range report.Buckets {
		for _, student := range bucket.Students {
			rows = append(rows, []string{
				strconv.FormatInt(student.StudentID, 10),
				student.FullName,
				strconv.Itoa(student.Completed),
				strconv.Itoa(student.Total),
				strconv.Itoa(student.Percent),
				bucket.Label,
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Student ID", "Full Name", "Completed", "Total", "Percent", "Range"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Completion Report Course %d", *params.CourseID)
	return dataset, title, nil
}

func (s *ExportService) buildEngagementDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.CourseID == nil {
		return export.Dataset{}, "", fmt.Errorf("engagement export requires a course id")
	}
	report, err := s.reports.ClassEngagementSummary(ctx, *params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([][]string, 0, len(report.Classes)+1)
	for _, class := range report.Classes {
		rows = append(rows, engagementRow(class))
	}
	rows = append(rows, engagementRow(report.Course))
	dataset := export.Dataset{
		Headers: []string{"Class", "Video Learners", "PDF Learners", "Both", "Either", "Enrolled"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Engagement Report Course %d", *params.CourseID)
	return dataset, title, nil
}

func engagementRow(class dto.ClassEngagement) []string {
	return []string{
		class.ClassLabel,
		strconv.Itoa(class.VideoLearners),
		strconv.Itoa(class.PDFLearners),
		strconv.Itoa(class.BothLearners),
		strconv.Itoa(class.EitherLearners),
		strconv.Itoa(class.TotalEnrolled),
	}
}

func (s *ExportService) buildConsistencyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	report, err := s.reports.ConsistencyReport(ctx, params.RangeKey, params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([][]string, 0, len(report.Users))
	for _, user := range report.Users {
		rows = append(rows, []string{
			strconv.FormatInt(user.UserID, 10),
			user.FullName,
			strconv.Itoa(user.UniqueDayCount),
			strconv.Itoa(report.TotalDays),
			strconv.Itoa(user.ConsistencyPercent),
			time.Unix(user.LastAccess, 0).UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"User ID", "Full Name", "Active Days", "Range Days", "Consistency (%)", "Last Access"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Consistency Report (%s)", report.Range)
	return dataset, title, nil
}

func (s *ExportService) buildOverviewDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	report, err := s.reports.CoursesCompletionOverview(ctx, params.Policy)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([][]string, 0, len(report.Courses))
	for _, course := range report.Courses {
		for _, bucket := range course.Buckets {
			rows = append(rows, []string{
				strconv.FormatInt(course.CourseID, 10),
				course.CourseName,
				strconv.Itoa(course.TotalEnrolled),
				bucket.Label,
				strconv.Itoa(bucket.Count),
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Course ID", "Course", "Enrolled", "Range", "Students"},
		Rows:    rows,
	}
	return dataset, "Courses Completion Overview", nil
}
