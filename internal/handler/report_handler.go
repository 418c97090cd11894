package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sushil7090/moodle-backend/internal/dto"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
	"github.com/Sushil7090/moodle-backend/pkg/response"
)

type reportService interface {
	CourseCompletionBreakdown(ctx context.Context, courseID int64, policy string) (*dto.CompletionBreakdownResponse, error)
	ClassEngagementSummary(ctx context.Context, courseID int64) (*dto.EngagementResponse, error)
	ConsistencyReport(ctx context.Context, rangeKey, from, to string) (*dto.ConsistencyResponse, error)
	CoursesCompletionOverview(ctx context.Context, policy string) (*dto.CoursesOverviewResponse, error)
}

// ReportHandler exposes the live reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CourseCompletion godoc
// @Summary Completion-range histogram for one course
// @Tags Reports
// @Produce json
// @Param id path int true "Course ID"
// @Param policy query string false "Bucket policy (percentage or fixedwidth)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/courses/{id}/completion [get]
func (h *ReportHandler) CourseCompletion(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	report, err := h.reports.CourseCompletionBreakdown(c.Request.Context(), courseID, c.Query("policy"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// CourseEngagement godoc
// @Summary Unique video and pdf learners per class
// @Tags Reports
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/courses/{id}/engagement [get]
func (h *ReportHandler) CourseEngagement(c *gin.Context) {
	courseID, ok := courseIDParam(c)
	if !ok {
		return
	}
	report, err := h.reports.ClassEngagementSummary(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// CompletionOverview godoc
// @Summary Completion histograms for every visible course
// @Tags Reports
// @Produce json
// @Param policy query string false "Bucket policy (percentage or fixedwidth)"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/completion [get]
func (h *ReportHandler) CompletionOverview(c *gin.Context) {
	report, err := h.reports.CoursesCompletionOverview(c.Request.Context(), c.Query("policy"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Consistency godoc
// @Summary Day-level access consistency over a date range
// @Tags Reports
// @Produce json
// @Param range query string true "Range key (today, yesterday, week, month, custom)"
// @Param from query string false "Custom range start (YYYY-MM-DD)"
// @Param to query string false "Custom range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/consistency [get]
func (h *ReportHandler) Consistency(c *gin.Context) {
	rangeKey := c.Query("range")
	if rangeKey == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidRange, "range is required"))
		return
	}
	report, err := h.reports.ConsistencyReport(c.Request.Context(), rangeKey, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func courseIDParam(c *gin.Context) (int64, bool) {
	courseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || courseID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course id"))
		return 0, false
	}
	return courseID, true
}
