package dto

import "github.com/Sushil7090/moodle-backend/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Type     models.ReportType   `json:"type"`
	CourseID *int64              `json:"courseId,omitempty"`
	Range    string              `json:"range,omitempty"`
	From     string              `json:"from,omitempty"`
	To       string              `json:"to,omitempty"`
	Policy   string              `json:"policy,omitempty"`
	Format   models.ReportFormat `json:"format"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
