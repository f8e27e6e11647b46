// Package coordinator periodically collects every observed student's
// courses and assignments from Canvas and publishes them as an immutable
// snapshot.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blackgold9/canvas-integration/pkg/assignment"
	"github.com/blackgold9/canvas-integration/pkg/canvas"
	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const (
	// DefaultInterval is the time between refreshes.
	DefaultInterval = 30 * time.Minute

	// planner window relative to now
	plannerLookback  = 30 * 24 * time.Hour
	plannerLookahead = 365 * 24 * time.Hour
)

// Mode selects how assignments and grades are collected.
type Mode string

const (
	// ModePlanner uses the embedded course enrollments and one planner
	// items request per student.
	ModePlanner Mode = "planner"
	// ModePerCourse fetches enrollments and assignments course by course,
	// tolerating failures of individual courses.
	ModePerCourse Mode = "per-course"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePlanner, ModePerCourse:
		return m, nil
	}
	return "", fmt.Errorf("unknown refresh mode: %q", s)
}

// Stage names the top-level call a refresh failed in.
type Stage string

const (
	StageStudents Stage = "students"
	StageProfile  Stage = "profile"
	StageCourses  Stage = "courses"
	StagePlanner  Stage = "planner"
)

// RefreshError is returned when a refresh cycle was aborted. The previously
// published snapshot is left in place.
type RefreshError struct {
	Stage     Stage
	StudentID string
	Err       error
}

func (e *RefreshError) Error() string {
	if e.StudentID != "" {
		return fmt.Sprintf("refresh failed fetching %s for student %s: %v", e.Stage, e.StudentID, e.Err)
	}
	return fmt.Sprintf("refresh failed fetching %s: %v", e.Stage, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Status describes the outcome of the most recent refreshes.
type Status struct {
	LastAttempt time.Time `json:"lastAttempt,omitzero"`
	LastSuccess time.Time `json:"lastSuccess,omitzero"`
	LastError   string    `json:"lastError,omitempty"`
	Refreshing  bool      `json:"refreshing"`
}

// Coordinator owns the refresh cycle of one configured entry.
type Coordinator struct {
	entryID  string
	api      canvas.API
	mode     Mode
	interval time.Duration
	now      func() time.Time

	// serializes refreshes
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[types.Snapshot]

	statusMu sync.Mutex
	status   Status
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithMode sets the collection mode. The default is ModePlanner.
func WithMode(m Mode) Option {
	return func(c *Coordinator) {
		c.mode = m
	}
}

// WithInterval sets the time between refreshes.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock replaces time.Now, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New returns a coordinator for entryID that reads from api.
func New(entryID string, api canvas.API, opts ...Option) *Coordinator {
	c := &Coordinator{
		entryID:  entryID,
		api:      api,
		mode:     ModePlanner,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EntryID returns the entry the coordinator refreshes.
func (c *Coordinator) EntryID() string {
	return c.entryID
}

// Snapshot returns the last fully collected snapshot or nil if no refresh
// has succeeded yet. Callers must not modify it.
func (c *Coordinator) Snapshot() *types.Snapshot {
	return c.snapshot.Load()
}

// Status returns the outcome of the most recent refreshes.
func (c *Coordinator) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// Run refreshes immediately and then every interval until ctx is done.
// Ticks that fire while a refresh is still running are skipped.
func (c *Coordinator) Run(ctx context.Context) {
	ctx = log.WithAttrs(ctx, slog.String("entryID", c.entryID))
	l := cronLogger{ctx: ctx}

	// failures are logged by Refresh and retried on the next tick
	_ = c.Refresh(ctx)

	sched := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	sched.Schedule(cron.Every(c.interval), cron.FuncJob(func() {
		_ = c.Refresh(ctx)
	}))
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()
	log.Ctx(ctx).InfoContext(ctx, "coordinator stopped")
}

// Refresh runs one refresh cycle and publishes the result. On error the
// previous snapshot stays published and the error is recorded in Status.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ctx = log.WithAttrs(ctx, slog.String("entryID", c.entryID))
	now := c.now()

	c.statusMu.Lock()
	c.status.LastAttempt = now
	c.status.Refreshing = true
	c.statusMu.Unlock()

	snap, err := c.collect(ctx, now)

	c.statusMu.Lock()
	c.status.Refreshing = false
	if err != nil {
		c.status.LastError = err.Error()
	} else {
		c.status.LastSuccess = now
		c.status.LastError = ""
	}
	c.statusMu.Unlock()

	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "refresh failed", slog.Any("error", err))
		return err
	}

	c.snapshot.Store(snap)
	log.Ctx(ctx).InfoContext(
		ctx,
		"refresh complete",
		slog.Int("students", len(snap.Students)),
		slog.Duration("took", c.now().Sub(now)),
	)
	return nil
}

func (c *Coordinator) collect(ctx context.Context, now time.Time) (*types.Snapshot, error) {
	students, err := c.students(ctx)
	if err != nil {
		return nil, err
	}

	snap := &types.Snapshot{
		RefreshedAt: now,
		Students:    make([]types.StudentSnapshot, 0, len(students)),
	}
	for _, st := range students {
		sctx := log.WithAttrs(ctx, slog.String("studentID", st.ID))

		var ss types.StudentSnapshot
		switch c.mode {
		case ModePerCourse:
			ss, err = c.collectPerCourse(sctx, st, now)
		default:
			ss, err = c.collectPlanner(sctx, st, now)
		}
		if err != nil {
			return nil, err
		}
		snap.Students = append(snap.Students, ss)
	}
	return snap, nil
}

// students returns the observees or, when there are none, the caller.
func (c *Coordinator) students(ctx context.Context) ([]types.Student, error) {
	observees, err := c.api.GetObservees(ctx)
	if err != nil {
		return nil, &RefreshError{Stage: StageStudents, Err: err}
	}
	if len(observees) > 0 {
		students := make([]types.Student, 0, len(observees))
		for _, o := range observees {
			students = append(students, o.ToStudent())
		}
		return students, nil
	}

	log.Ctx(ctx).DebugContext(ctx, "no observees, using own profile")
	profile, err := c.api.GetProfile(ctx)
	if err != nil {
		return nil, &RefreshError{Stage: StageProfile, Err: err}
	}
	return []types.Student{profile.ToStudent()}, nil
}

func (c *Coordinator) courses(ctx context.Context, st types.Student, now time.Time) ([]types.Course, error) {
	raw, err := c.api.GetCourses(ctx, st.ID)
	if err != nil {
		return nil, &RefreshError{Stage: StageCourses, StudentID: st.ID, Err: err}
	}
	courses := make([]types.Course, 0, len(raw))
	for _, rc := range raw {
		courses = append(courses, rc.ToCourse(ctx))
	}
	return FilterCourses(ctx, courses, now), nil
}

func (c *Coordinator) collectPlanner(ctx context.Context, st types.Student, now time.Time) (types.StudentSnapshot, error) {
	courses, err := c.courses(ctx, st, now)
	if err != nil {
		return types.StudentSnapshot{}, err
	}

	ss := types.StudentSnapshot{
		ID:          st.ID,
		Name:        st.Name,
		Courses:     courses,
		Assignments: []types.Assignment{},
	}
	if len(courses) == 0 {
		return ss, nil
	}

	codes := make([]string, 0, len(courses))
	names := make(map[string]string, len(courses))
	for _, course := range courses {
		codes = append(codes, "course_"+course.ID)
		names[course.ID] = course.Name
	}

	items, err := c.api.GetPlannerItems(ctx, st.ID, now.Add(-plannerLookback), now.Add(plannerLookahead), codes)
	if err != nil {
		return types.StudentSnapshot{}, &RefreshError{Stage: StagePlanner, StudentID: st.ID, Err: err}
	}
	for _, item := range items {
		if item.PlannableType != canvas.PlannableTypeAssignment {
			continue
		}
		if item.ContextName == nil || *item.ContextName == "" {
			if name, ok := names[string(item.CourseID)]; ok {
				item.ContextName = &name
			}
		}
		ss.Assignments = append(ss.Assignments, assignment.Normalize(ctx, item))
	}
	return ss, nil
}

// collectPerCourse fetches each course's enrollments and assignments on
// their own. A course whose enrollments cannot be fetched is left out
// entirely; one whose assignments cannot be fetched keeps its grades.
func (c *Coordinator) collectPerCourse(ctx context.Context, st types.Student, now time.Time) (types.StudentSnapshot, error) {
	courses, err := c.courses(ctx, st, now)
	if err != nil {
		return types.StudentSnapshot{}, err
	}

	ss := types.StudentSnapshot{
		ID:          st.ID,
		Name:        st.Name,
		Courses:     make([]types.Course, 0, len(courses)),
		Assignments: []types.Assignment{},
	}
	for _, course := range courses {
		cctx := log.WithAttrs(ctx, slog.String("courseID", course.ID))

		enrollments, err := c.api.GetCourseEnrollments(cctx, course.ID, st.ID)
		if err != nil {
			log.Ctx(cctx).WarnContext(cctx, "could not fetch course enrollments", slog.Any("error", err))
			continue
		}
		if len(enrollments) > 0 {
			course.Enrollments = make([]types.Enrollment, 0, len(enrollments))
			for _, e := range enrollments {
				course.Enrollments = append(course.Enrollments, e.ToEnrollment())
			}
			ss.Courses = append(ss.Courses, course)
		}

		raw, err := c.api.GetCourseAssignments(cctx, course.ID, st.ID)
		if err != nil {
			log.Ctx(cctx).WarnContext(cctx, "could not fetch course assignments", slog.Any("error", err))
			continue
		}
		courseName := assignment.CleanCourseName(&course.Name)
		for _, a := range raw {
			ss.Assignments = append(ss.Assignments, assignment.NormalizeCourseAssignment(cctx, a, courseName))
		}
		log.Ctx(cctx).DebugContext(cctx, "collected course assignments", slog.Int("count", len(raw)))
	}
	return ss, nil
}
