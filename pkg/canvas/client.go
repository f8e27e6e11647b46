package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/common"
	"github.com/blackgold9/canvas-integration/pkg/log"
)

const (
	apiPath = "/api/v1"

	// requestTimeout bounds every individual request, including each page
	requestTimeout = 10 * time.Second
	pageSize       = 100
)

// API is the subset of the Canvas REST API the refresh core consumes.
type API interface {
	// GetProfile returns the profile of the token's owner.
	GetProfile(ctx context.Context) (Profile, error)

	// GetObservees returns the students the caller observes.
	GetObservees(ctx context.Context) ([]Profile, error)

	// GetCourses returns the user's courses with scores, term and
	// enrollments included.
	GetCourses(ctx context.Context, userID string) ([]Course, error)

	// GetPlannerItems returns the user's planner items between start and end
	// restricted to the given context codes.
	GetPlannerItems(ctx context.Context, userID string, start, end time.Time, contextCodes []string) ([]PlannerItem, error)

	// GetCourseEnrollments returns the user's enrollments in one course.
	GetCourseEnrollments(ctx context.Context, courseID, userID string) ([]Enrollment, error)

	// GetCourseAssignments returns the assignments of one course along with
	// the user's submission.
	GetCourseAssignments(ctx context.Context, courseID, userID string) ([]Assignment, error)
}

// Client talks to one Canvas instance on behalf of one API token. It holds
// no state between calls.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	timeout time.Duration
}

var _ API = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the http client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = common.WrapClient(hc)
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.client.Timeout = d
	}
}

// New returns a client for the Canvas instance at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		client:  common.HTTPClient(requestTimeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: requestTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate ensures the client was given something usable.
func (c *Client) Validate() error {
	if c.token == "" {
		return errors.New("missing api token")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse canvas url (%s): %w", c.baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("canvas url must be http(s): %s", c.baseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("canvas url is missing a host: %s", c.baseURL)
	}
	return nil
}

// GetProfile implements API.
func (c *Client) GetProfile(ctx context.Context) (Profile, error) {
	profiles, err := fetchAll[Profile](ctx, c, "/users/self/profile", nil)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(profiles) == 0 {
		return Profile{}, errors.New("failed to get profile: empty response")
	}
	return profiles[0], nil
}

// GetObservees implements API.
func (c *Client) GetObservees(ctx context.Context) ([]Profile, error) {
	observees, err := fetchAll[Profile](ctx, c, "/users/self/observees", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get observees: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "got canvas observees", slog.Int("count", len(observees)))
	return observees, nil
}

// GetCourses implements API.
func (c *Client) GetCourses(ctx context.Context, userID string) ([]Course, error) {
	params := url.Values{}
	params.Add("include[]", "total_scores")
	params.Add("include[]", "term")
	params.Add("include[]", "enrollments")

	courses, err := fetchAll[Course](ctx, c, "/users/"+url.PathEscape(userID)+"/courses", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get courses for user %s: %w", userID, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "got canvas courses", slog.String("userID", userID), slog.Int("count", len(courses)))
	return courses, nil
}

// GetPlannerItems implements API.
func (c *Client) GetPlannerItems(ctx context.Context, userID string, start, end time.Time, contextCodes []string) ([]PlannerItem, error) {
	params := url.Values{}
	params.Set("observed_user_id", userID)
	params.Set("start_date", start.UTC().Format(time.RFC3339))
	params.Set("end_date", end.UTC().Format(time.RFC3339))
	for _, code := range contextCodes {
		params.Add("context_codes[]", code)
	}

	items, err := fetchAll[PlannerItem](ctx, c, "/planner/items", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get planner items for user %s: %w", userID, err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"got canvas planner items",
		slog.String("userID", userID),
		slog.Int("contexts", len(contextCodes)),
		slog.Int("count", len(items)),
	)
	return items, nil
}

// GetCourseEnrollments implements API.
func (c *Client) GetCourseEnrollments(ctx context.Context, courseID, userID string) ([]Enrollment, error) {
	params := url.Values{}
	params.Set("user_id", userID)

	enrollments, err := fetchAll[Enrollment](ctx, c, "/courses/"+url.PathEscape(courseID)+"/enrollments", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments for course %s: %w", courseID, err)
	}
	return enrollments, nil
}

// GetCourseAssignments implements API.
func (c *Client) GetCourseAssignments(ctx context.Context, courseID, userID string) ([]Assignment, error) {
	params := url.Values{}
	params.Set("include[]", "submission")

	endpoint := "/users/" + url.PathEscape(userID) + "/courses/" + url.PathEscape(courseID) + "/assignments"
	assignments, err := fetchAll[Assignment](ctx, c, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments for course %s: %w", courseID, err)
	}
	return assignments, nil
}
