package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CurrentEntryVersion is the current version of the entry struct.
// Increment this value when adding new fields that require default values.
const CurrentEntryVersion = 1

const (
	// DefaultUpcomingDays is the width of the upcoming window when unset.
	DefaultUpcomingDays = 14
	// DefaultMissedDays is the width of the missed window when unset.
	DefaultMissedDays = 7
)

var validate = validator.New()

// Entry is one configured Canvas account. Each entry gets its own refresh
// coordinator.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	// UserID is the Canvas user the token belongs to, discovered at setup
	UserID string `json:"userID"`

	// API token (encrypted)
	EncryptedToken []byte `json:"encryptedToken,omitempty"`

	Options   Options   `json:"options"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"version"`
}

// Options are the user-tunable settings of an entry.
type Options struct {
	// Number of days ahead counted as upcoming
	UpcomingDays int `json:"upcomingDays" validate:"min=1,max=365"`
	// Number of days back counted as missed
	MissedDays int `json:"missedDays" validate:"min=1,max=365"`
}

// DefaultOptions returns the options a new entry starts with.
func DefaultOptions() Options {
	return Options{
		UpcomingDays: DefaultUpcomingDays,
		MissedDays:   DefaultMissedDays,
	}
}

// Validate checks the options are within range.
func (o Options) Validate() error {
	return Validate(o)
}

// Validate runs the struct tag validations on v.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %T: %w", v, err)
	}
	return nil
}

// MigrateEntry migrates the entry to the current version.
// It returns the migrated entry and a boolean indicating if changes were made.
func MigrateEntry(e Entry) (Entry, bool) {
	if e.Version >= CurrentEntryVersion {
		return e, false
	}

	migrated := false
	for version := e.Version + 1; version <= CurrentEntryVersion; version++ {
		switch version {
		case 1:
			// version 1: window options
			if e.Options.UpcomingDays == 0 {
				e.Options.UpcomingDays = DefaultUpcomingDays
				migrated = true
			}
			if e.Options.MissedDays == 0 {
				e.Options.MissedDays = DefaultMissedDays
				migrated = true
			}
		}
	}
	if e.Version != CurrentEntryVersion {
		e.Version = CurrentEntryVersion
		migrated = true
	}
	return e, migrated
}
