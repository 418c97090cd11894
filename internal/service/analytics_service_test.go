package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushil7090/moodle-backend/internal/analytics"
	"github.com/Sushil7090/moodle-backend/internal/dto"
	"github.com/Sushil7090/moodle-backend/internal/moodle"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

type fakeMoodle struct {
	courses         []moodle.Course
	coursesErr      error
	sections        map[int64][]moodle.Section
	sectionsErr     map[int64]error
	users           map[int64][]moodle.EnrolledUser
	usersErr        map[int64]error
	statuses        map[string][]moodle.CompletionStatus
	statusErr       map[string]error
	completionCalls int
}

func statusKey(courseID, userID int64) string {
	return fmt.Sprintf("%d:%d", courseID, userID)
}

func (f *fakeMoodle) FetchCourses(ctx context.Context, userID int64) ([]moodle.Course, error) {
	return f.courses, f.coursesErr
}

func (f *fakeMoodle) FetchCourseStructure(ctx context.Context, courseID int64) ([]moodle.Section, error) {
	if err := f.sectionsErr[courseID]; err != nil {
		return nil, err
	}
	return f.sections[courseID], nil
}

func (f *fakeMoodle) FetchEnrolledUsers(ctx context.Context, courseID int64) ([]moodle.EnrolledUser, error) {
	if err := f.usersErr[courseID]; err != nil {
		return nil, err
	}
	return f.users[courseID], nil
}

func (f *fakeMoodle) FetchCompletionStatus(ctx context.Context, courseID, studentID int64) ([]moodle.CompletionStatus, error) {
	f.completionCalls++
	key := statusKey(courseID, studentID)
	if err := f.statusErr[key]; err != nil {
		return nil, err
	}
	return f.statuses[key], nil
}

func newCourseFixture() *fakeMoodle {
	return &fakeMoodle{
		sections: map[int64][]moodle.Section{
			7: {
				{Name: "Class A", Modules: []moodle.Module{
					{ID: 101, Instance: 11, Name: "Intro Video", ModName: "resource"},
					{ID: 102, Instance: 12, Name: "Syllabus PDF", ModName: "resource"},
					{ID: 103, Instance: 13, Name: "Week forum", ModName: "forum"},
				}},
				{Name: "Class B", Modules: []moodle.Module{
					{ID: 104, Instance: 14, Name: "Lecture 2", ModName: "url"},
				}},
			},
		},
		users: map[int64][]moodle.EnrolledUser{
			7: {
				{ID: 1, FullName: "Asha Rao"},
				{ID: 2, FullName: "Bo Lindqvist"},
				{ID: 3, FullName: "Caro Mendes"},
			},
		},
		statuses: map[string][]moodle.CompletionStatus{
			statusKey(7, 1): {
				{CmID: 101, ModName: "resource", Instance: 11, State: moodle.StateCompletePassed},
				{CmID: 102, ModName: "resource", Instance: 12, State: moodle.StateCompleteNotPassed},
				{CmID: 104, ModName: "url", Instance: 14, State: moodle.StateCompletePassed},
				{CmID: 103, ModName: "forum", Instance: 13, State: moodle.StateCompletePassed},
			},
			statusKey(7, 2): {
				{CmID: 101, ModName: "resource", Instance: 11, State: moodle.StateCompletePassed},
				{CmID: 102, ModName: "resource", Instance: 12, State: moodle.StateIncomplete},
				{CmID: 104, ModName: "url", Instance: 14, State: moodle.StateIncomplete},
			},
			statusKey(7, 3): {
				{CmID: 101, ModName: "resource", Instance: 11, State: moodle.StateIncomplete},
				{CmID: 102, ModName: "resource", Instance: 12, State: moodle.StateIncomplete},
				{CmID: 104, ModName: "url", Instance: 14, State: moodle.StateIncomplete},
			},
		},
	}
}

func newAnalyticsService(fake *fakeMoodle) *AnalyticsService {
	return NewAnalyticsService(fake, nil, AnalyticsConfig{
		DashboardUserID: 99,
		Batch:           analytics.BatchConfig{Size: 2, Pause: time.Millisecond},
	})
}

func TestCourseCompletionBreakdown(t *testing.T) {
	fake := newCourseFixture()
	svc := newAnalyticsService(fake)

	resp, err := svc.CourseCompletionBreakdown(context.Background(), 7, "")
	require.NoError(t, err)

	assert.Equal(t, int64(7), resp.CourseID)
	assert.Equal(t, "percentage", resp.Policy)
	assert.Equal(t, 3, resp.TotalEnrolled)
	// Forum events are not tracked; three content items remain.
	assert.Equal(t, 3, resp.TotalTrackedActivities)
	assert.Equal(t, 0, resp.FetchFailures)
	assert.Equal(t, 3, fake.completionCalls)

	counts := map[string]int{}
	sum := 0
	for _, bucket := range resp.Buckets {
		counts[bucket.Key] = bucket.Count
		sum += bucket.Count
	}
	assert.Equal(t, 3, sum, "every student lands in exactly one bucket")
	assert.Equal(t, 1, counts["full"], "student 1 completed all tracked items")
	assert.Equal(t, 1, counts["mid"], "student 2 completed 1 of 3")
	assert.Equal(t, 1, counts["0"], "student 3 completed none")
}

func TestCourseCompletionTotalUsesMaxObservedCount(t *testing.T) {
	fake := newCourseFixture()
	// Student 1 is scanned first and reports a single tracked activity,
	// as happens when conditionally-hidden items are omitted from the
	// completion payload. The course total must come from the fullest
	// roster entry, not the first one seen.
	fake.statuses[statusKey(7, 1)] = []moodle.CompletionStatus{
		{CmID: 101, ModName: "resource", Instance: 11, State: moodle.StateCompletePassed},
	}
	fake.statuses[statusKey(7, 2)] = []moodle.CompletionStatus{
		{CmID: 101, ModName: "resource", Instance: 11, State: moodle.StateCompletePassed},
		{CmID: 102, ModName: "resource", Instance: 12, State: moodle.StateCompleteNotPassed},
		{CmID: 104, ModName: "url", Instance: 14, State: moodle.StateIncomplete},
	}
	svc := newAnalyticsService(fake)

	resp, err := svc.CourseCompletionBreakdown(context.Background(), 7, "")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalTrackedActivities)

	students := map[int64]dto.StudentProgressEntry{}
	for _, bucket := range resp.Buckets {
		for _, student := range bucket.Students {
			students[student.StudentID] = student
		}
	}
	require.Len(t, students, 3)
	for id, student := range students {
		assert.Equal(t, 3, student.Total, "student %d shares the course-wide total", id)
	}
	assert.Equal(t, 1, students[1].Completed)
	assert.Equal(t, 33, students[1].Percent)
	assert.Equal(t, 2, students[2].Completed)
	assert.Equal(t, 67, students[2].Percent, "2 of 3 rounds up, not truncates")
}

func TestCourseCompletionBreakdownPolicyOverride(t *testing.T) {
	svc := newAnalyticsService(newCourseFixture())

	resp, err := svc.CourseCompletionBreakdown(context.Background(), 7, "fixedwidth")
	require.NoError(t, err)
	assert.Equal(t, "fixedwidth", resp.Policy)
	assert.Len(t, resp.Buckets, 5)

	_, err = svc.CourseCompletionBreakdown(context.Background(), 7, "decile")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestCourseCompletionBreakdownDegradedStudents(t *testing.T) {
	fake := newCourseFixture()
	fake.statusErr = map[string]error{
		statusKey(7, 2): errors.New("upstream timeout"),
	}
	svc := newAnalyticsService(fake)

	resp, err := svc.CourseCompletionBreakdown(context.Background(), 7, "")
	require.NoError(t, err, "one failed student must not fail the report")
	assert.Equal(t, 1, resp.FetchFailures)

	sum := 0
	for _, bucket := range resp.Buckets {
		sum += bucket.Count
	}
	assert.Equal(t, 3, sum, "failed student still appears, in the zero bucket")
}

func TestCourseCompletionBreakdownUpstreamFailure(t *testing.T) {
	fake := newCourseFixture()
	fake.usersErr = map[int64]error{7: appErrors.ErrUpstream}
	svc := newAnalyticsService(fake)

	_, err := svc.CourseCompletionBreakdown(context.Background(), 7, "")
	require.Error(t, err)
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrUpstream.Code, typed.Code)
}

func TestClassEngagementSummary(t *testing.T) {
	svc := newAnalyticsService(newCourseFixture())

	resp, err := svc.ClassEngagementSummary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalEnrolled)

	require.Len(t, resp.Classes, 2)
	classA := resp.Classes[0]
	assert.Equal(t, "Class A", classA.ClassLabel)
	// Students 1 and 2 completed the intro video; only student 1 the pdf.
	assert.Equal(t, 2, classA.VideoLearners)
	assert.Equal(t, 1, classA.PDFLearners)
	assert.Equal(t, 1, classA.BothLearners)
	assert.Equal(t, 2, classA.EitherLearners)

	classB := resp.Classes[1]
	assert.Equal(t, "Class B", classB.ClassLabel)
	assert.Equal(t, 1, classB.VideoLearners)

	// Student 1 watched videos in both classes but counts once course-wide.
	assert.Equal(t, 2, resp.Course.VideoLearners)
	assert.Equal(t, "All classes", resp.Course.ClassLabel)
}

func TestConsistencyReportAggregatesAcrossCourses(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeMoodle{
		courses: []moodle.Course{
			{ID: 7, FullName: "Algebra"},
			{ID: 8, FullName: "Biology"},
		},
		users: map[int64][]moodle.EnrolledUser{
			7: {
				{ID: 1, FullName: "Asha Rao", LastAccess: now.Unix() - 3600},
				{ID: 2, FullName: "Bo Lindqvist", LastAccess: now.Unix() - 10*86400},
			},
			8: {
				{ID: 1, FullName: "Asha Rao", LastAccess: now.Unix() - 7200},
			},
		},
	}
	svc := newAnalyticsService(fake)

	resp, err := svc.ConsistencyReport(context.Background(), "week", "", "")
	require.NoError(t, err)
	assert.Equal(t, "week", resp.Range)
	assert.Equal(t, 8, resp.TotalDays)

	// User 2 last accessed outside the window.
	require.Len(t, resp.Users, 1)
	user := resp.Users[0]
	assert.Equal(t, int64(1), user.UserID)
	assert.Equal(t, 2, user.UniqueDayCount, "two course memberships, both under the cap")
	assert.Equal(t, now.Unix()-3600, user.LastAccess, "latest access across courses wins")
	assert.Equal(t, 25, user.ConsistencyPercent)
	assert.Len(t, resp.Breakdown, 8)
}

func TestConsistencyReportInvalidRange(t *testing.T) {
	svc := newAnalyticsService(&fakeMoodle{})

	_, err := svc.ConsistencyReport(context.Background(), "fortnight", "", "")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrInvalidRange.Code, typed.Code)
}

func TestCoursesCompletionOverviewPartialResults(t *testing.T) {
	fake := newCourseFixture()
	fake.courses = []moodle.Course{
		{ID: 7, FullName: "Algebra"},
		{ID: 9, FullName: "Chemistry"},
	}
	fake.sectionsErr = map[int64]error{9: appErrors.ErrUpstream}
	svc := newAnalyticsService(fake)

	resp, err := svc.CoursesCompletionOverview(context.Background(), "")
	require.NoError(t, err, "a failed course must not fail the overview")
	assert.Equal(t, "fixedwidth", resp.Policy)

	require.Len(t, resp.Courses, 1)
	assert.Equal(t, int64(7), resp.Courses[0].CourseID)
	assert.Equal(t, "Algebra", resp.Courses[0].CourseName)
	assert.Len(t, resp.Courses[0].Buckets, 5)

	require.Len(t, resp.Failures, 1)
	assert.Equal(t, int64(9), resp.Failures[0].CourseID)
	assert.NotEmpty(t, resp.Failures[0].Error)
}
