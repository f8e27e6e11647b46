package types

import "time"

// CalendarEvent is a calendar view of a single assignment. It is derived on
// demand and never stored.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}
