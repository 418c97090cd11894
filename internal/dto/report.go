package dto

// StudentProgressEntry is one student's standing inside a completion bucket.
type StudentProgressEntry struct {
	StudentID   int64  `json:"studentId"`
	FullName    string `json:"fullName"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	Percent     int    `json:"percent"`
	FetchFailed bool   `json:"fetchFailed,omitempty"`
}

// CompletionBucket is one completion-range bucket with its member students.
type CompletionBucket struct {
	Key      string                 `json:"key"`
	Label    string                 `json:"label"`
	Count    int                    `json:"count"`
	Students []StudentProgressEntry `json:"students"`
}

// CompletionBreakdownResponse is returned by the per-course completion report.
type CompletionBreakdownResponse struct {
	CourseID               int64              `json:"courseId"`
	Policy                 string             `json:"policy"`
	TotalEnrolled          int                `json:"totalEnrolled"`
	TotalTrackedActivities int                `json:"totalTrackedActivities"`
	FetchFailures          int                `json:"fetchFailures"`
	Buckets                []CompletionBucket `json:"buckets"`
}

// ClassEngagement reports unique-learner counts for one class label.
type ClassEngagement struct {
	ClassLabel     string `json:"classLabel"`
	VideoLearners  int    `json:"videoLearners"`
	PDFLearners    int    `json:"pdfLearners"`
	BothLearners   int    `json:"bothLearners"`
	EitherLearners int    `json:"eitherLearners"`
	TotalEnrolled  int    `json:"totalEnrolled"`
}

// EngagementResponse is returned by the per-course engagement report.
type EngagementResponse struct {
	CourseID      int64             `json:"courseId"`
	TotalEnrolled int               `json:"totalEnrolled"`
	FetchFailures int               `json:"fetchFailures"`
	Classes       []ClassEngagement `json:"classes"`
	Course        ClassEngagement   `json:"course"`
}

// DayBucketEntry counts users whose estimated active-day count equals Days.
type DayBucketEntry struct {
	Days  int `json:"days"`
	Count int `json:"count"`
}

// ConsistencyUser is one user's day-level access consistency.
type ConsistencyUser struct {
	UserID             int64  `json:"userId"`
	FullName           string `json:"fullName"`
	UniqueDayCount     int    `json:"uniqueDayCount"`
	LastAccess         int64  `json:"lastAccess"`
	ConsistencyPercent int    `json:"consistencyPercent"`
}

// ConsistencyResponse is returned by the access-consistency report.
type ConsistencyResponse struct {
	Range     string            `json:"range"`
	From      int64             `json:"from"`
	To        int64             `json:"to"`
	TotalDays int               `json:"totalDays"`
	Breakdown []DayBucketEntry  `json:"breakdown"`
	Users     []ConsistencyUser `json:"users"`
}

// BucketCount is a completion bucket without its student list, used by the
// all-courses overview.
type BucketCount struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CourseCompletionSummary is one course's histogram in the overview.
type CourseCompletionSummary struct {
	CourseID      int64         `json:"courseId"`
	CourseName    string        `json:"courseName"`
	TotalEnrolled int           `json:"totalEnrolled"`
	Buckets       []BucketCount `json:"buckets"`
}

// CourseFailure records a course the overview could not summarise.
type CourseFailure struct {
	CourseID   int64  `json:"courseId"`
	CourseName string `json:"courseName"`
	Error      string `json:"error"`
}

// CoursesOverviewResponse is returned by the all-courses completion overview.
// Failures carry the courses whose upstream fetches failed; the rest of the
// payload is still served.
type CoursesOverviewResponse struct {
	Policy   string                    `json:"policy"`
	Courses  []CourseCompletionSummary `json:"courses"`
	Failures []CourseFailure           `json:"failures,omitempty"`
}
