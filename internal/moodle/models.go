package moodle

// Completion states reported by core_completion_get_activities_completion_status.
const (
	StateIncomplete        = 0
	StateCompleteNotPassed = 1
	StateCompletePassed    = 2
)

// Course is one row of the roster returned by core_enrol_get_users_courses.
type Course struct {
	ID        int64    `json:"id"`
	FullName  string   `json:"fullname"`
	ShortName string   `json:"shortname"`
	StartDate int64    `json:"startdate"`
	EndDate   int64    `json:"enddate"`
	Progress  *float64 `json:"progress"`
}

// Section is one course-structure section from core_course_get_contents.
type Section struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Modules []Module `json:"modules"`
}

// Module is a single content item inside a section.
type Module struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ModName  string `json:"modname"`
	Instance int64  `json:"instance"`
}

// EnrolledUser is one row from core_enrol_get_enrolled_users.
type EnrolledUser struct {
	ID         int64  `json:"id"`
	FullName   string `json:"fullname"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	LastAccess int64  `json:"lastaccess"`
}

// CompletionStatus is one activity-completion row for a (course, student) pair.
type CompletionStatus struct {
	CmID          int64  `json:"cmid"`
	ModName       string `json:"modname"`
	Instance      int64  `json:"instance"`
	State         int    `json:"state"`
	TimeCompleted int64  `json:"timecompleted"`
}

// Completed reports whether the state counts toward progress.
func (s CompletionStatus) Completed() bool {
	return s.State == StateCompleteNotPassed || s.State == StateCompletePassed
}

type completionResponse struct {
	Statuses []CompletionStatus `json:"statuses"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorcode"`
}

// wsException is the error payload Moodle returns with HTTP 200.
type wsException struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}
