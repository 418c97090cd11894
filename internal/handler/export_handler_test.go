package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushil7090/moodle-backend/internal/dto"
	"github.com/Sushil7090/moodle-backend/internal/middleware"
	"github.com/Sushil7090/moodle-backend/internal/models"
	"github.com/Sushil7090/moodle-backend/internal/service"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

type exportServiceMock struct {
	job      *dto.ExportJobResponse
	status   *dto.ExportStatusResponse
	download *service.ReportDownload
	err      error

	lastRequest dto.ExportRequest
	lastActor   string
	lastID      string
	lastToken   string
}

func (m *exportServiceMock) CreateJob(_ context.Context, req dto.ExportRequest, actor string) (*dto.ExportJobResponse, error) {
	m.lastRequest = req
	m.lastActor = actor
	return m.job, m.err
}

func (m *exportServiceMock) GetStatus(_ context.Context, id string) (*dto.ExportStatusResponse, error) {
	m.lastID = id
	return m.status, m.err
}

func (m *exportServiceMock) ResolveDownload(_ context.Context, token string) (*service.ReportDownload, error) {
	m.lastToken = token
	return m.download, m.err
}

func TestCreateExportAccepted(t *testing.T) {
	mock := &exportServiceMock{
		job: &dto.ExportJobResponse{ID: "job-1", Status: models.ReportStatusQueued},
	}
	h := NewExportHandler(mock)

	body := `{"type":"completion","courseId":7,"format":"csv"}`
	c, recorder := newGinContext(http.MethodPost, "/api/v1/exports", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "teacher1"})

	h.CreateExport(c)

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, "teacher1", mock.lastActor)
	require.NotNil(t, mock.lastRequest.CourseID)
	assert.Equal(t, int64(7), *mock.lastRequest.CourseID)
	assert.Equal(t, models.ReportTypeCompletion, mock.lastRequest.Type)
}

func TestCreateExportBadPayload(t *testing.T) {
	mock := &exportServiceMock{}
	h := NewExportHandler(mock)

	c, recorder := newGinContext(http.MethodPost, "/api/v1/exports", `{"type":`)

	h.CreateExport(c)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestExportStatusNotFound(t *testing.T) {
	mock := &exportServiceMock{err: appErrors.ErrNotFound}
	h := NewExportHandler(mock)

	c, recorder := newGinContext(http.MethodGet, "/api/v1/exports/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.ExportStatus(c)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "missing", mock.lastID)
}

func TestExportStatusFound(t *testing.T) {
	mock := &exportServiceMock{
		status: &dto.ExportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	h := NewExportHandler(mock)

	c, recorder := newGinContext(http.MethodGet, "/api/v1/exports/job-1", "")
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	h.ExportStatus(c)

	assert.Equal(t, http.StatusOK, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	require.NotNil(t, envelope.Data)
}

func TestDownloadExportStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completion_course7_20260115.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student ID,Full Name\n1,Alice\n"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	mock := &exportServiceMock{
		download: &service.ReportDownload{
			File:     file,
			Filename: "completion_course7_20260115.csv",
			Format:   models.ReportFormatCSV,
		},
	}
	h := NewExportHandler(mock)

	c, recorder := newGinContext(http.MethodGet, "/api/v1/export/tok123", "")
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	h.DownloadExport(c)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "tok123", mock.lastToken)
	assert.Equal(t, "text/csv", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "completion_course7_20260115.csv")
	assert.Contains(t, recorder.Body.String(), "Alice")
}

func TestDownloadExportRejectsBadToken(t *testing.T) {
	mock := &exportServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	h := NewExportHandler(mock)

	c, recorder := newGinContext(http.MethodGet, "/api/v1/export/bogus", "")
	c.Params = gin.Params{{Key: "token", Value: "bogus"}}

	h.DownloadExport(c)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	envelope := decodeEnvelope(t, recorder)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrForbidden.Code, envelope.Error.Code)
}
