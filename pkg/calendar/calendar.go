// Package calendar projects assignments onto calendar events and renders
// them as an iCalendar feed.
package calendar

import (
	"slices"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/blackgold9/canvas-integration/pkg/common"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const (
	// EventDuration is the synthetic length of every assignment event.
	EventDuration = time.Hour
	// EventLocation is the location stamped on every event.
	EventLocation = "Canvas"
	// NextHorizon is how far ahead Next looks for an event.
	NextHorizon = 365 * 24 * time.Hour
)

// Project returns an event for every assignment due within [start, end],
// ordered by start. Submission state is ignored.
func Project(assignments []types.Assignment, start, end time.Time) []types.CalendarEvent {
	events := []types.CalendarEvent{}
	for _, a := range assignments {
		if a.DueAt == nil {
			continue
		}
		due := *a.DueAt
		if due.Before(start) || due.After(end) {
			continue
		}
		events = append(events, types.CalendarEvent{
			UID:         "canvas-assignment-" + a.ID,
			Summary:     "[" + a.CourseName + "] " + a.Name,
			Start:       due,
			End:         due.Add(EventDuration),
			Description: a.Description,
			Location:    EventLocation,
		})
	}
	slices.SortStableFunc(events, func(a, b types.CalendarEvent) int {
		return a.Start.Compare(b.Start)
	})
	return events
}

// Next returns the first event starting within NextHorizon of now.
func Next(assignments []types.Assignment, now time.Time) (types.CalendarEvent, bool) {
	events := Project(assignments, now, now.Add(NextHorizon))
	if len(events) == 0 {
		return types.CalendarEvent{}, false
	}
	return events[0], true
}

// RenderICS serializes events into a publishable iCalendar document named
// name. stamp is used as DTSTAMP on every event.
func RenderICS(name string, events []types.CalendarEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//canvas-integration//" + common.Version() + "//EN")
	cal.SetXWRCalName(name)

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.Start.UTC())
		ev.SetEndAt(e.End.UTC())
		ev.SetSummary(e.Summary)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		ev.SetLocation(e.Location)
	}
	return cal.Serialize()
}
