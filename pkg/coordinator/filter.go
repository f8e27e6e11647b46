package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

// EndGracePeriod is how long after its end date a course is still refreshed.
const EndGracePeriod = 7 * 24 * time.Hour

// adminKeywords mark courses that are not real classes. Matched
// case-insensitively against the course name.
var adminKeywords = []string{
	"homeroom",
	"advisory",
	"attendance",
	"lunch",
	"study hall",
	"counseling",
	"sandbox",
}

// FilterCourses drops courses that carry no coursework: unnamed, archived
// terms, administrative shells and anything that ended more than
// EndGracePeriod before now. Order is preserved.
func FilterCourses(ctx context.Context, courses []types.Course, now time.Time) []types.Course {
	cutoff := now.Add(-EndGracePeriod)
	kept := make([]types.Course, 0, len(courses))
	for _, c := range courses {
		if reason := dropReason(c, cutoff); reason != "" {
			log.Ctx(ctx).DebugContext(
				ctx,
				"skipping course",
				slog.String("courseID", c.ID),
				slog.String("course", c.Name),
				slog.String("reason", reason),
			)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func dropReason(c types.Course, cutoff time.Time) string {
	if strings.TrimSpace(c.Name) == "" {
		return "no name"
	}
	if strings.Contains(c.Term.Name, "Archive") {
		return "archived term"
	}
	lower := strings.ToLower(c.Name)
	for _, kw := range adminKeywords {
		if strings.Contains(lower, kw) {
			return "administrative"
		}
	}
	end := c.EndAt
	if end == nil {
		end = c.Term.EndAt
	}
	if end != nil && end.Before(cutoff) {
		return "ended"
	}
	return ""
}
