package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/Sushil7090/moodle-backend/internal/analytics"
	"github.com/Sushil7090/moodle-backend/internal/dto"
	"github.com/Sushil7090/moodle-backend/internal/moodle"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

type moodleFetcher interface {
	FetchCourses(ctx context.Context, userID int64) ([]moodle.Course, error)
	FetchCourseStructure(ctx context.Context, courseID int64) ([]moodle.Section, error)
	FetchEnrolledUsers(ctx context.Context, courseID int64) ([]moodle.EnrolledUser, error)
	FetchCompletionStatus(ctx context.Context, courseID, studentID int64) ([]moodle.CompletionStatus, error)
}

// AnalyticsConfig tunes report construction.
type AnalyticsConfig struct {
	// DashboardUserID scopes the course roster for cross-course reports.
	DashboardUserID int64
	Batch           analytics.BatchConfig
	// DefaultPolicy applies to the per-course breakdown when the request
	// names none; OverviewPolicy applies to the all-courses overview.
	DefaultPolicy  analytics.BucketPolicy
	OverviewPolicy analytics.BucketPolicy
	RangeLenient   bool
}

// AnalyticsService builds completion, engagement and consistency reports by
// orchestrating upstream fetches. No report data is cached: every request
// reflects live upstream state.
type AnalyticsService struct {
	moodle   moodleFetcher
	resolver analytics.RangeResolver
	logger   *zap.Logger
	cfg      AnalyticsConfig
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(client moodleFetcher, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = analytics.PolicyPercentage
	}
	if cfg.OverviewPolicy == "" {
		cfg.OverviewPolicy = analytics.PolicyFixedWidth
	}
	return &AnalyticsService{
		moodle:   client,
		resolver: analytics.RangeResolver{Lenient: cfg.RangeLenient},
		logger:   logger,
		cfg:      cfg,
	}
}

// courseCompletion is the shared per-course fetch product: the roster, the
// classified activity index, and one completion list per enrolled student.
type courseCompletion struct {
	users    []moodle.EnrolledUser
	index    *analytics.ActivityIndex
	statuses [][]moodle.CompletionStatus
	progress []analytics.StudentProgress
	failures int
	total    int
}

func (s *AnalyticsService) fetchCourseCompletion(ctx context.Context, courseID int64) (*courseCompletion, error) {
	sections, err := s.moodle.FetchCourseStructure(ctx, courseID)
	if err != nil {
		return nil, err
	}
	index := analytics.BuildActivityIndex(toCourseSections(sections))

	users, err := s.moodle.FetchEnrolledUsers(ctx, courseID)
	if err != nil {
		return nil, err
	}

	results := analytics.RunBatches(ctx, s.cfg.Batch, users,
		func(ctx context.Context, user moodle.EnrolledUser) ([]moodle.CompletionStatus, error) {
			return s.moodle.FetchCompletionStatus(ctx, courseID, user.ID)
		},
		func(user moodle.EnrolledUser, err error) []moodle.CompletionStatus {
			s.logger.Warn("completion fetch degraded",
				zap.Int64("course_id", courseID),
				zap.Int64("student_id", user.ID),
				zap.Error(err))
			return nil
		})

	cc := &courseCompletion{
		users:    users,
		index:    index,
		statuses: make([][]moodle.CompletionStatus, len(users)),
		progress: make([]analytics.StudentProgress, len(users)),
	}

	// The course total is the largest tracked-activity count any student
	// reports, so adding activities can only grow it.
	for i, result := range results {
		cc.statuses[i] = result.Value
		tracked, completed := 0, 0
		for _, status := range result.Value {
			if _, ok := index.Lookup(status.CmID, status.Instance); !ok {
				if analytics.TrackedModType(status.ModName) {
					s.logger.Debug("completion event without matching activity",
						zap.Int64("course_id", courseID),
						zap.Int64("cmid", status.CmID))
				}
				continue
			}
			tracked++
			if status.Completed() {
				completed++
			}
		}
		if tracked > cc.total {
			cc.total = tracked
		}
		if result.Failed() {
			cc.failures++
		}
		cc.progress[i] = analytics.StudentProgress{
			StudentID:   users[i].ID,
			FullName:    users[i].FullName,
			Email:       users[i].Email,
			Completed:   completed,
			FetchFailed: result.Failed(),
		}
	}
	for i := range cc.progress {
		cc.progress[i].Total = cc.total
	}
	return cc, nil
}

// CourseCompletionBreakdown returns the completion-range histogram for one
// course. An empty policy string selects the configured default.
func (s *AnalyticsService) CourseCompletionBreakdown(ctx context.Context, courseID int64, policyRaw string) (*dto.CompletionBreakdownResponse, error) {
	policy, err := s.policyOrDefault(policyRaw, s.cfg.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	cc, err := s.fetchCourseCompletion(ctx, courseID)
	if err != nil {
		return nil, err
	}

	buckets := analytics.BuildHistogram(policy, cc.progress)
	return &dto.CompletionBreakdownResponse{
		CourseID:               courseID,
		Policy:                 string(policy),
		TotalEnrolled:          len(cc.users),
		TotalTrackedActivities: cc.total,
		FetchFailures:          cc.failures,
		Buckets:                toCompletionBuckets(buckets),
	}, nil
}

// ClassEngagementSummary returns per-class and course-wide unique learner
// counts for video and pdf content.
func (s *AnalyticsService) ClassEngagementSummary(ctx context.Context, courseID int64) (*dto.EngagementResponse, error) {
	cc, err := s.fetchCourseCompletion(ctx, courseID)
	if err != nil {
		return nil, err
	}

	agg := analytics.NewEngagementAggregator()
	for i, statuses := range cc.statuses {
		for _, status := range statuses {
			if !status.Completed() {
				continue
			}
			activity, ok := cc.index.Lookup(status.CmID, status.Instance)
			if !ok {
				continue
			}
			agg.Record(activity.ClassLabel, activity.Category, cc.users[i].ID)
		}
	}

	classes := agg.Classes(len(cc.users))
	resp := &dto.EngagementResponse{
		CourseID:      courseID,
		TotalEnrolled: len(cc.users),
		FetchFailures: cc.failures,
		Classes:       make([]dto.ClassEngagement, 0, len(classes)),
		Course:        toClassEngagement(agg.Course(len(cc.users))),
	}
	for _, class := range classes {
		resp.Classes = append(resp.Classes, toClassEngagement(class))
	}
	return resp, nil
}

// ConsistencyReport estimates day-level access consistency across every
// course visible to the dashboard user.
func (s *AnalyticsService) ConsistencyReport(ctx context.Context, rangeKey, from, to string) (*dto.ConsistencyResponse, error) {
	rng, err := s.resolver.Resolve(rangeKey, from, to)
	if err != nil {
		return nil, err
	}

	courses, err := s.moodle.FetchCourses(ctx, s.cfg.DashboardUserID)
	if err != nil {
		return nil, err
	}

	results := analytics.RunBatches(ctx, s.cfg.Batch, courses,
		func(ctx context.Context, course moodle.Course) ([]moodle.EnrolledUser, error) {
			return s.moodle.FetchEnrolledUsers(ctx, course.ID)
		},
		func(course moodle.Course, err error) []moodle.EnrolledUser {
			s.logger.Warn("roster fetch degraded",
				zap.Int64("course_id", course.ID),
				zap.Error(err))
			return nil
		})

	byUser := make(map[int64]int)
	activity := make([]analytics.UserActivity, 0)
	for _, result := range results {
		for _, user := range result.Value {
			idx, seen := byUser[user.ID]
			if !seen {
				byUser[user.ID] = len(activity)
				activity = append(activity, analytics.UserActivity{
					UserID:   user.ID,
					FullName: user.FullName,
				})
				idx = len(activity) - 1
			}
			activity[idx].CourseCount++
			if user.LastAccess > activity[idx].LastAccess {
				activity[idx].LastAccess = user.LastAccess
			}
		}
	}

	report := analytics.BuildConsistencyReport(rng, activity)
	return toConsistencyResponse(report), nil
}

// CoursesCompletionOverview summarises completion for every course visible
// to the dashboard user. Courses whose fetches fail are reported in Failures
// while the remaining summaries are still served.
func (s *AnalyticsService) CoursesCompletionOverview(ctx context.Context, policyRaw string) (*dto.CoursesOverviewResponse, error) {
	policy, err := s.policyOrDefault(policyRaw, s.cfg.OverviewPolicy)
	if err != nil {
		return nil, err
	}

	courses, err := s.moodle.FetchCourses(ctx, s.cfg.DashboardUserID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CoursesOverviewResponse{
		Policy:  string(policy),
		Courses: make([]dto.CourseCompletionSummary, 0, len(courses)),
	}
	for _, course := range courses {
		cc, err := s.fetchCourseCompletion(ctx, course.ID)
		if err != nil {
			s.logger.Warn("overview course degraded",
				zap.Int64("course_id", course.ID),
				zap.Error(err))
			resp.Failures = append(resp.Failures, dto.CourseFailure{
				CourseID:   course.ID,
				CourseName: course.FullName,
				Error:      err.Error(),
			})
			continue
		}
		buckets := analytics.BuildHistogram(policy, cc.progress)
		summary := dto.CourseCompletionSummary{
			CourseID:      course.ID,
			CourseName:    course.FullName,
			TotalEnrolled: len(cc.users),
			Buckets:       make([]dto.BucketCount, 0, len(buckets)),
		}
		for _, bucket := range buckets {
			summary.Buckets = append(summary.Buckets, dto.BucketCount{
				Key:   bucket.Key,
				Label: bucket.Label,
				Count: bucket.Count,
			})
		}
		resp.Courses = append(resp.Courses, summary)
	}
	return resp, nil
}

func (s *AnalyticsService) policyOrDefault(raw string, fallback analytics.BucketPolicy) (analytics.BucketPolicy, error) {
	if raw == "" {
		return fallback, nil
	}
	policy, ok := analytics.ParseBucketPolicy(raw)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported bucket policy")
	}
	return policy, nil
}

func toCourseSections(sections []moodle.Section) []analytics.CourseSection {
	converted := make([]analytics.CourseSection, 0, len(sections))
	for _, section := range sections {
		cs := analytics.CourseSection{Name: section.Name}
		for _, mod := range section.Modules {
			cs.Modules = append(cs.Modules, analytics.CourseModule{
				ID:       mod.ID,
				Instance: mod.Instance,
				Name:     mod.Name,
				ModName:  mod.ModName,
			})
		}
		converted = append(converted, cs)
	}
	return converted
}

func toCompletionBuckets(buckets []analytics.RangeBucket) []dto.CompletionBucket {
	converted := make([]dto.CompletionBucket, 0, len(buckets))
	for _, bucket := range buckets {
		entry := dto.CompletionBucket{
			Key:      bucket.Key,
			Label:    bucket.Label,
			Count:    bucket.Count,
			Students: make([]dto.StudentProgressEntry, 0, len(bucket.Students)),
		}
		for _, student := range bucket.Students {
			entry.Students = append(entry.Students, dto.StudentProgressEntry{
				StudentID:   student.StudentID,
				FullName:    student.FullName,
				Completed:   student.Completed,
				Total:       student.Total,
				Percent:     int(math.Round(student.Percent())),
				FetchFailed: student.FetchFailed,
			})
		}
		converted = append(converted, entry)
	}
	return converted
}

func toClassEngagement(summary analytics.ClassSummary) dto.ClassEngagement {
	return dto.ClassEngagement{
		ClassLabel:     summary.ClassLabel,
		VideoLearners:  summary.VideoLearners,
		PDFLearners:    summary.PDFLearners,
		BothLearners:   summary.BothLearners,
		EitherLearners: summary.EitherLearners,
		TotalEnrolled:  summary.TotalEnrolled,
	}
}

func toConsistencyResponse(report analytics.ConsistencyReport) *dto.ConsistencyResponse {
	resp := &dto.ConsistencyResponse{
		Range:     report.Range.Key,
		From:      report.Range.From,
		To:        report.Range.To,
		TotalDays: report.TotalDays,
		Breakdown: make([]dto.DayBucketEntry, 0, len(report.Breakdown)),
		Users:     make([]dto.ConsistencyUser, 0, len(report.Users)),
	}
	for _, bucket := range report.Breakdown {
		resp.Breakdown = append(resp.Breakdown, dto.DayBucketEntry{Days: bucket.Days, Count: bucket.Count})
	}
	for _, user := range report.Users {
		resp.Users = append(resp.Users, dto.ConsistencyUser{
			UserID:             user.UserID,
			FullName:           user.FullName,
			UniqueDayCount:     user.UniqueDayCount,
			LastAccess:         user.LastAccessEpoch,
			ConsistencyPercent: user.ConsistencyPercent,
		})
	}
	return resp
}
