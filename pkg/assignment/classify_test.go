package assignment

import (
	"testing"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func due(t time.Time) *time.Time {
	return &t
}

func ids(assignments []types.Assignment) []string {
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.ID)
	}
	return out
}

func TestClassify(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, loc)

	assignments := []types.Assignment{
		{ID: "now", DueAt: due(now)},
		{ID: "later-today", DueAt: due(now.Add(6 * time.Hour))},
		{ID: "earlier-today", DueAt: due(now.Add(-6 * time.Hour))},
		// 23:30 local, still today even though it is tomorrow in UTC
		{ID: "late-tonight", DueAt: due(time.Date(2025, 9, 11, 4, 30, 0, 0, time.UTC))},
		{ID: "tomorrow", DueAt: due(now.Add(24 * time.Hour))},
		{ID: "in-3-days", DueAt: due(now.Add(72 * time.Hour))},
		{ID: "in-7-days", DueAt: due(now.Add(7 * 24 * time.Hour))},
		{ID: "in-8-days", DueAt: due(now.Add(8 * 24 * time.Hour))},
		{ID: "2-days-ago", DueAt: due(now.Add(-48 * time.Hour))},
		{ID: "7-days-ago", DueAt: due(now.Add(-7 * 24 * time.Hour))},
		{ID: "8-days-ago", DueAt: due(now.Add(-8 * 24 * time.Hour))},
		{ID: "submitted", DueAt: due(now.Add(-time.Hour)), IsSubmitted: true},
		{ID: "undated"},
	}

	t.Run("Today", func(t *testing.T) {
		got, err := Classify(assignments, now, WindowToday, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"earlier-today", "now", "later-today", "late-tonight"}, ids(got))
	})

	t.Run("Tomorrow", func(t *testing.T) {
		got, err := Classify(assignments, now, WindowTomorrow, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"tomorrow"}, ids(got))
	})

	t.Run("Upcoming", func(t *testing.T) {
		got, err := Classify(assignments, now, WindowUpcoming, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"later-today", "late-tonight", "tomorrow", "in-3-days", "in-7-days"}, ids(got))
	})

	t.Run("Missed", func(t *testing.T) {
		got, err := Classify(assignments, now, WindowMissed, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"now", "earlier-today", "2-days-ago", "7-days-ago"}, ids(got))
	})

	t.Run("Due Exactly Now", func(t *testing.T) {
		exact := []types.Assignment{{ID: "exact", DueAt: due(now)}}

		missed, err := Classify(exact, now, WindowMissed, 7)
		require.NoError(t, err)
		assert.Len(t, missed, 1)

		upcoming, err := Classify(exact, now, WindowUpcoming, 7)
		require.NoError(t, err)
		assert.Empty(t, upcoming)
	})

	t.Run("Never Submitted Or Undated", func(t *testing.T) {
		for _, w := range []Window{WindowToday, WindowTomorrow, WindowUpcoming, WindowMissed} {
			got, err := Classify(assignments, now, w, 365)
			require.NoError(t, err)
			for _, a := range got {
				assert.False(t, a.IsSubmitted, w)
				assert.NotNil(t, a.DueAt, w)
			}
		}
	})

	t.Run("Stable Order", func(t *testing.T) {
		same := []types.Assignment{
			{ID: "a", DueAt: due(now.Add(time.Hour))},
			{ID: "b", DueAt: due(now.Add(time.Hour))},
		}
		got, err := Classify(same, now, WindowUpcoming, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(got))
	})

	t.Run("Unknown Window", func(t *testing.T) {
		_, err := Classify(assignments, now, Window("yesterday"), 7)
		assert.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		got, err := Classify(nil, now, WindowMissed, 7)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("upcoming_week")
	require.NoError(t, err)
	assert.Equal(t, WindowUpcoming, w)

	_, err = ParseWindow("week")
	assert.Error(t, err)
}
