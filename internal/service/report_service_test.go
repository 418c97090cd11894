package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushil7090/moodle-backend/internal/dto"
	"github.com/Sushil7090/moodle-backend/internal/models"
	"github.com/Sushil7090/moodle-backend/internal/repository"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
	"github.com/Sushil7090/moodle-backend/pkg/jobs"
	"github.com/Sushil7090/moodle-backend/pkg/storage"
)

type fakeJobStore struct {
	jobs    map[string]*models.ReportJob
	created int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.ReportJob{}}
}

func (f *fakeJobStore) Create(ctx context.Context, job *models.ReportJob) error {
	f.created++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", f.created)
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := f.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (f *fakeJobStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	queued := make([]models.ReportJob, 0)
	for _, job := range f.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (f *fakeJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeGenerator struct {
	result *ExportResult
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	return f.result, f.err
}

func TestCreateJobEnqueues(t *testing.T) {
	store := newFakeJobStore()
	queue := &fakeDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	courseID := int64(7)
	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:     models.ReportTypeCompletion,
		CourseID: &courseID,
		Format:   models.ReportFormatCSV,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "admin", store.jobs[resp.ID].CreatedBy)
}

func TestCreateJobValidation(t *testing.T) {
	svc := NewReportService(newFakeJobStore(), &fakeDispatcher{}, nil, nil, ReportServiceConfig{})

	cases := []dto.ExportRequest{
		{Type: models.ReportTypeCompletion, Format: models.ReportFormatCSV},
		{Type: models.ReportTypeConsistency, Format: models.ReportFormatCSV},
		{Type: "grades", Format: models.ReportFormatCSV},
		{Type: models.ReportTypeOverview, Format: "xlsx"},
	}
	for _, req := range cases {
		_, err := svc.CreateJob(context.Background(), req, "admin")
		var typed *appErrors.Error
		require.True(t, errors.As(err, &typed), "request %+v", req)
		assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
	}
}

func TestCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := newFakeJobStore()
	svc := NewReportService(store, &fakeDispatcher{err: errors.New("queue stopped")}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ReportTypeOverview,
		Format: models.ReportFormatCSV,
	}, "admin")
	require.Error(t, err)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestGetStatus(t *testing.T) {
	store := newFakeJobStore()
	url := "/api/v1/export/token"
	store.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusFinished,
		Progress:  100,
		ResultURL: &url,
	}
	svc := NewReportService(store, &fakeDispatcher{}, nil, nil, ReportServiceConfig{})

	resp, err := svc.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)
	require.NotNil(t, resp.ResultURL)
	assert.Equal(t, url, *resp.ResultURL)

	_, err = svc.GetStatus(context.Background(), "missing")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
}

func TestResolveDownload(t *testing.T) {
	dir := t.TempDir()
	localStore, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	_, err = localStore.Save("report.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	token, _, err := signer.Generate("job-1", "report.csv")
	require.NoError(t, err)

	store := newFakeJobStore()
	url := "/api/v1/export/" + token
	store.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusFinished,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		ResultURL: &url,
	}

	exporter := NewExportService(nil, localStore, signer, ExportConfig{}, nil, nil, nil)
	svc := NewReportService(store, &fakeDispatcher{}, exporter, nil, ReportServiceConfig{})

	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "report.csv", download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)

	_, err = svc.ResolveDownload(context.Background(), "bogus-token")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
}

func TestWorkerHandleSuccess(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &fakeGenerator{result: &ExportResult{URL: "/api/v1/export/tok"}}, 3, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/export/tok", *job.ResultURL)
	assert.NotNil(t, job.FinishedAt)
}

func TestWorkerHandleRetriesThenFails(t *testing.T) {
	store := newFakeJobStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &fakeGenerator{err: errors.New("upstream down")}, 2, nil)

	// Attempts below the cap requeue the job.
	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0}))
	assert.Equal(t, models.ReportStatusQueued, store.jobs["job-1"].Status)

	// The final attempt marks it failed.
	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "upstream down", *job.ErrorMessage)
}
