// Package assignment turns upstream assignment records into
// types.Assignment and buckets them into the time windows the entities
// report on.
package assignment

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blackgold9/canvas-integration/pkg/canvas"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const (
	// UnknownCourse is used when a record has no course name at all.
	UnknownCourse = "Unknown Course"

	unknownName = "Unknown"
)

// Normalize converts a planner item into an assignment. A due date that
// cannot be parsed is logged and left nil.
func Normalize(ctx context.Context, item canvas.PlannerItem) types.Assignment {
	p := item.Plannable
	return types.Assignment{
		ID:          string(p.ID),
		Name:        orDefault(p.Title, unknownName),
		CourseName:  CleanCourseName(item.ContextName),
		DueAt:       canvas.ParseTime(ctx, "plannable.due_at", p.DueAt),
		Description: deref(p.Description),
		IsSubmitted: item.Submissions.IsSubmitted(),
	}
}

// NormalizeCourseAssignment converts an assignment fetched through the
// per-course endpoint. courseName is used as given.
func NormalizeCourseAssignment(ctx context.Context, a canvas.Assignment, courseName string) types.Assignment {
	return types.Assignment{
		ID:          string(a.ID),
		Name:        orDefault(a.Name, unknownName),
		CourseName:  orDefault(strings.TrimSpace(courseName), UnknownCourse),
		DueAt:       canvas.ParseTime(ctx, "assignment.due_at", a.DueAt),
		Description: deref(a.Description),
		IsSubmitted: a.Submission.IsSubmitted(),
	}
}

// periodPrefix matches "P3-", "2nd period-" and "1st and 3rd period-".
var periodPrefix = regexp.MustCompile(`(?i)^(?:p\d+\s*-|\d+(?:st|nd|rd|th)\s+(?:and\s+\d+(?:st|nd|rd|th)\s+)?period\s*-)\s*`)

// CleanCourseName strips the section and period decorations schools put in
// front of course names, "P1-Spanish 2 H-PASSAGLIA" becomes
// "Spanish 2 H-PASSAGLIA". It is a best-effort heuristic; anything it does
// not recognize is returned trimmed but otherwise unchanged.
func CleanCourseName(name *string) string {
	if name == nil {
		return UnknownCourse
	}
	s := strings.TrimSpace(*name)
	if s == "" {
		return UnknownCourse
	}

	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	s = periodPrefix.ReplaceAllString(s, "")

	if left, right, ok := strings.Cut(s, " - "); ok {
		if isCode(left, 15) {
			s = right
		}
	} else if left, right, ok := strings.Cut(s, "-"); ok {
		if isCode(left, 8) {
			s = right
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownCourse
	}
	return s
}

// isCode reports whether s looks like a section code: shorter than limit
// characters and either all uppercase or containing a digit.
func isCode(s string, limit int) bool {
	if utf8.RuneCountInString(s) >= limit {
		return false
	}
	var hasDigit, hasUpper, hasLower bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	return hasDigit || (hasUpper && !hasLower)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
