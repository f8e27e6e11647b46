// Package entities projects a snapshot into the entity states a home
// automation host displays.
package entities

import (
	"fmt"
	"strconv"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/assignment"
	"github.com/blackgold9/canvas-integration/pkg/calendar"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const (
	// StateNone is reported when there is nothing to show.
	StateNone = "none"
	// StateUnknown is reported for a grade that has not been computed.
	StateUnknown = "unknown"

	iconAssignments = "mdi:notebook-edit"
	iconMissed      = "mdi:alert-circle"
	iconGrade       = "mdi:school"
	iconCalendar    = "mdi:calendar"
)

// State is one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	Name        string         `json:"name"`
	State       string         `json:"state"`
	Icon        string         `json:"icon,omitempty"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// AssignmentInfo is how an assignment is listed in entity attributes.
type AssignmentInfo struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Course string    `json:"course"`
	DueAt  time.Time `json:"due_at"`
}

type window struct {
	suffix string
	label  string
	window assignment.Window
	days   int
}

// Build returns every entity for every student of snap, in student order.
// A nil snapshot yields no entities.
func Build(snap *types.Snapshot, opts types.Options, now time.Time) ([]State, error) {
	if snap == nil {
		return []State{}, nil
	}
	opts = withDefaults(opts)

	var out []State
	for _, st := range snap.Students {
		states, err := buildStudent(st, opts, now, snap.RefreshedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to build entities for student %s: %w", st.ID, err)
		}
		out = append(out, states...)
	}
	if out == nil {
		out = []State{}
	}
	return out, nil
}

func withDefaults(opts types.Options) types.Options {
	def := types.DefaultOptions()
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = def.UpcomingDays
	}
	if opts.MissedDays <= 0 {
		opts.MissedDays = def.MissedDays
	}
	return opts
}

func buildStudent(st types.StudentSnapshot, opts types.Options, now, updated time.Time) ([]State, error) {
	windows := []window{
		{suffix: "assignments_today", label: "Assignments Due Today", window: assignment.WindowToday},
		{suffix: "assignments_tomorrow", label: "Assignments Due Tomorrow", window: assignment.WindowTomorrow},
		{suffix: "assignments_upcoming", label: "Upcoming Assignments", window: assignment.WindowUpcoming, days: opts.UpcomingDays},
		{suffix: "assignments_missed", label: "Missed Assignments", window: assignment.WindowMissed, days: opts.MissedDays},
	}

	var states []State
	buckets := make(map[assignment.Window][]AssignmentInfo, len(windows))
	for _, w := range windows {
		matched, err := assignment.Classify(st.Assignments, now, w.window, w.days)
		if err != nil {
			return nil, err
		}
		infos := assignmentInfos(matched)
		buckets[w.window] = infos

		attrs := map[string]any{
			"student_name": st.Name,
			"assignments":  infos,
		}
		if w.days > 0 {
			attrs["window_days"] = w.days
		}
		icon := iconAssignments
		if w.window == assignment.WindowMissed {
			icon = iconMissed
		}
		states = append(states, newState("sensor", st, w.suffix, st.Name+" "+w.label, strconv.Itoa(len(infos)), icon, attrs, updated))
	}

	upcoming := buckets[assignment.WindowUpcoming]
	missed := buckets[assignment.WindowMissed]
	states = append(states, newState(
		"sensor",
		st,
		"assignments_summary",
		st.Name+" Assignments",
		strconv.Itoa(len(upcoming)+len(missed)),
		iconAssignments,
		map[string]any{
			"student_name":         st.Name,
			"upcoming_assignments": upcoming,
			"missed_assignments":   missed,
			"upcoming_count":       len(upcoming),
			"missed_count":         len(missed),
			"upcoming_window_days": opts.UpcomingDays,
			"missed_window_days":   opts.MissedDays,
		},
		updated,
	))

	lastMissed := map[string]any{"student_name": st.Name}
	lastMissedState := StateNone
	if len(missed) > 0 {
		// missed is newest first
		lastMissedState = missed[0].Name
		lastMissed["course"] = missed[0].Course
		lastMissed["due_at"] = missed[0].DueAt
	}
	states = append(states, newState("sensor", st, "last_missed_assignment", st.Name+" Last Missed Assignment", lastMissedState, iconMissed, lastMissed, updated))

	states = append(states, gradeStates(st, updated)...)
	states = append(states, calendarState(st, now, updated))
	return states, nil
}

func gradeStates(st types.StudentSnapshot, updated time.Time) []State {
	var states []State
	for _, c := range st.Courses {
		name := c.Name
		if name == "" {
			name = c.CourseCode
		}
		if name == "" {
			name = assignment.UnknownCourse
		}
		for _, e := range c.Enrollments {
			if e.Type != types.EnrollmentTypeStudent {
				continue
			}
			s := State{
				EntityID: "sensor.canvas_" + st.ID + "_" + c.ID + "_grade",
				UniqueID: "canvas_" + st.ID + "_" + c.ID + "_grade",
				Name:     st.Name + " - " + name + " Grade",
				State:    gradeState(e),
				Icon:     iconGrade,
				Attributes: map[string]any{
					"course_name":   name,
					"student_name":  st.Name,
					"current_score": e.CurrentScore,
					"current_grade": e.CurrentGrade,
					"final_score":   e.FinalScore,
					"final_grade":   e.FinalGrade,
				},
				LastUpdated: updated,
			}
			states = append(states, s)
		}
	}
	return states
}

func gradeState(e types.Enrollment) string {
	if e.CurrentScore != nil {
		return strconv.FormatFloat(*e.CurrentScore, 'f', -1, 64)
	}
	if e.CurrentGrade != nil && *e.CurrentGrade != "" {
		return *e.CurrentGrade
	}
	return StateUnknown
}

func calendarState(st types.StudentSnapshot, now, updated time.Time) State {
	attrs := map[string]any{"student_name": st.Name}
	state := StateNone
	if ev, ok := calendar.Next(st.Assignments, now); ok {
		state = ev.Summary
		attrs["message"] = ev.Summary
		attrs["description"] = ev.Description
		attrs["location"] = ev.Location
		attrs["start_time"] = ev.Start
		attrs["end_time"] = ev.End
	}
	return newState("calendar", st, "calendar", st.Name+" Assignments Calendar", state, iconCalendar, attrs, updated)
}

func newState(domain string, st types.StudentSnapshot, suffix, name, state, icon string, attrs map[string]any, updated time.Time) State {
	id := "canvas_" + st.ID + "_" + suffix
	return State{
		EntityID:    domain + "." + id,
		UniqueID:    id,
		Name:        name,
		State:       state,
		Icon:        icon,
		Attributes:  attrs,
		LastUpdated: updated,
	}
}

func assignmentInfos(assignments []types.Assignment) []AssignmentInfo {
	infos := make([]AssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		// Classify never returns undated assignments
		infos = append(infos, AssignmentInfo{
			ID:     a.ID,
			Name:   a.Name,
			Course: a.CourseName,
			DueAt:  *a.DueAt,
		})
	}
	return infos
}
