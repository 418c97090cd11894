package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sushil7090/moodle-backend/pkg/config"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

const (
	restEndpoint  = "/webservice/rest/server.php"
	tokenEndpoint = "/login/token.php"
	tokenService  = "moodle_mobile_app"

	fnUserCourses      = "core_enrol_get_users_courses"
	fnCourseContents   = "core_course_get_contents"
	fnEnrolledUsers    = "core_enrol_get_enrolled_users"
	fnCompletionStatus = "core_completion_get_activities_completion_status"
)

// UpstreamObserver receives timing for each web-service call.
type UpstreamObserver interface {
	ObserveUpstreamCall(function string, success bool, duration time.Duration)
}

// Client is a thin wrapper over the Moodle REST web-service protocol: a
// function name plus parameters in, a JSON payload or a typed error out.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	logger   *zap.Logger
	observer UpstreamObserver
}

// NewClient constructs a Moodle web-service client.
func NewClient(cfg config.MoodleConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// FetchCourses returns the course roster visible to the given user.
func (c *Client) FetchCourses(ctx context.Context, userID int64) ([]Course, error) {
	params := url.Values{}
	params.Set("userid", strconv.FormatInt(userID, 10))

	var courses []Course
	if err := c.call(ctx, fnUserCourses, params, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// FetchCourseStructure returns the sections and modules of a course.
func (c *Client) FetchCourseStructure(ctx context.Context, courseID int64) ([]Section, error) {
	params := url.Values{}
	params.Set("courseid", strconv.FormatInt(courseID, 10))

	var sections []Section
	if err := c.call(ctx, fnCourseContents, params, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// FetchEnrolledUsers returns every user enrolled in the course.
func (c *Client) FetchEnrolledUsers(ctx context.Context, courseID int64) ([]EnrolledUser, error) {
	params := url.Values{}
	params.Set("courseid", strconv.FormatInt(courseID, 10))

	var users []EnrolledUser
	if err := c.call(ctx, fnEnrolledUsers, params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FetchCompletionStatus returns the per-activity completion list for one
// student in one course.
func (c *Client) FetchCompletionStatus(ctx context.Context, courseID, studentID int64) ([]CompletionStatus, error) {
	params := url.Values{}
	params.Set("courseid", strconv.FormatInt(courseID, 10))
	params.Set("userid", strconv.FormatInt(studentID, 10))

	var resp completionResponse
	if err := c.call(ctx, fnCompletionStatus, params, &resp); err != nil {
		return nil, err
	}
	return resp.Statuses, nil
}

// Login exchanges user credentials for a Moodle web-service token. It is
// used only to verify dashboard credentials; the returned token is discarded
// by callers that merely authenticate.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("service", tokenService)

	body, err := c.post(ctx, c.baseURL+tokenEndpoint, form)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "malformed token response")
	}
	if resp.Token == "" {
		if resp.ErrorCode == "invalidlogin" {
			return "", appErrors.ErrInvalidCredentials
		}
		return "", appErrors.Clone(appErrors.ErrUpstream, resp.Error)
	}
	return resp.Token, nil
}

// SetObserver attaches per-call instrumentation. Must be called before the
// client is shared across goroutines.
func (c *Client) SetObserver(observer UpstreamObserver) {
	c.observer = observer
}

// call invokes a web-service function and decodes the JSON payload into
// target. Moodle signals failures with an exception payload under HTTP 200,
// so the body is inspected before decoding.
func (c *Client) call(ctx context.Context, function string, params url.Values, target interface{}) (err error) {
	if c.observer != nil {
		start := time.Now()
		defer func() {
			c.observer.ObserveUpstreamCall(function, err == nil, time.Since(start))
		}()
	}
	return c.doCall(ctx, function, params, target)
}

func (c *Client) doCall(ctx context.Context, function string, params url.Values, target interface{}) error {
	form := url.Values{}
	form.Set("wstoken", c.token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")
	for key, values := range params {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	body, err := c.post(ctx, c.baseURL+restEndpoint, form)
	if err != nil {
		c.logger.Warn("moodle call failed", zap.String("function", function), zap.Error(err))
		return err
	}

	if exc := parseException(body); exc != nil {
		c.logger.Warn("moodle exception payload",
			zap.String("function", function),
			zap.String("errorcode", exc.ErrorCode))
		return appErrors.Wrap(fmt.Errorf("%s: %s", exc.ErrorCode, exc.Message),
			appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream returned an exception")
	}

	if err := json.Unmarshal(body, target); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status,
			fmt.Sprintf("malformed %s response", function))
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "build upstream request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "read upstream response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode),
			appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unexpected upstream status")
	}
	return body, nil
}

func parseException(body []byte) *wsException {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var exc wsException
	if err := json.Unmarshal(body, &exc); err != nil {
		return nil
	}
	if exc.Exception == "" {
		return nil
	}
	return &exc
}
