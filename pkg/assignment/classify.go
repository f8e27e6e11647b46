package assignment

import (
	"fmt"
	"slices"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/types"
)

// Window is a named time bucket relative to now.
type Window string

const (
	// WindowToday is every assignment due on now's calendar date.
	WindowToday Window = "today"
	// WindowTomorrow is every assignment due on the following calendar date.
	WindowTomorrow Window = "tomorrow"
	// WindowUpcoming is (now, now+days].
	WindowUpcoming Window = "upcoming_week"
	// WindowMissed is [now-days, now], newest first.
	WindowMissed Window = "missed"
)

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowToday, WindowTomorrow, WindowUpcoming, WindowMissed:
		return w, nil
	}
	return "", fmt.Errorf("unknown window: %q", s)
}

// Classify returns the unsubmitted assignments with a due date that fall in
// window. Calendar dates are compared in now's location. The result is
// ordered by due date ascending, except for WindowMissed which is
// descending. days only applies to WindowUpcoming and WindowMissed.
func Classify(assignments []types.Assignment, now time.Time, window Window, days int) ([]types.Assignment, error) {
	var include func(due time.Time) bool
	switch window {
	case WindowToday:
		today := dateOf(now, now.Location())
		include = func(due time.Time) bool {
			return dateOf(due, now.Location()) == today
		}
	case WindowTomorrow:
		tomorrow := dateOf(now.AddDate(0, 0, 1), now.Location())
		include = func(due time.Time) bool {
			return dateOf(due, now.Location()) == tomorrow
		}
	case WindowUpcoming:
		limit := now.Add(time.Duration(days) * 24 * time.Hour)
		include = func(due time.Time) bool {
			return due.After(now) && !due.After(limit)
		}
	case WindowMissed:
		limit := now.Add(-time.Duration(days) * 24 * time.Hour)
		include = func(due time.Time) bool {
			return !due.Before(limit) && !due.After(now)
		}
	default:
		return nil, fmt.Errorf("unknown window: %q", window)
	}

	out := []types.Assignment{}
	for _, a := range assignments {
		if a.IsSubmitted || a.DueAt == nil {
			continue
		}
		if include(*a.DueAt) {
			out = append(out, a)
		}
	}

	slices.SortStableFunc(out, func(a, b types.Assignment) int {
		if window == WindowMissed {
			return b.DueAt.Compare(*a.DueAt)
		}
		return a.DueAt.Compare(*b.DueAt)
	})
	return out, nil
}

type date struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) date {
	y, m, d := t.In(loc).Date()
	return date{y, m, d}
}
