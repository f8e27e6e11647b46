package canvas

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/log"
)

// timestamps without an offset are read as UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp from Canvas. Nil or empty input
// yields nil. Anything unparsable is logged and also yields nil so a bad
// date never stops the record that carries it from being used.
func ParseTime(ctx context.Context, field string, v *string) *time.Time {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	log.Ctx(ctx).WarnContext(ctx, "could not parse canvas date", slog.String("field", field), slog.String("value", s))
	return nil
}
