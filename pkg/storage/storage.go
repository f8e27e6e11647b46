package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"

	"github.com/blackgold9/canvas-integration/pkg/types"
)

// ErrEntryNotFound is returned when an entry does not exist.
var ErrEntryNotFound = errors.New("entry not found")

// Database persists configured entries. Refresh snapshots are never stored.
type Database interface {
	// ListEntries returns every stored entry ordered by ID.
	ListEntries(ctx context.Context) ([]types.Entry, error)
	// GetEntry returns ErrEntryNotFound if the entry does not exist.
	GetEntry(ctx context.Context, id string) (types.Entry, error)
	// PutEntry creates or replaces an entry.
	PutEntry(ctx context.Context, entry types.Entry) error
	// DeleteEntry removes an entry. Deleting a missing entry is not an error.
	DeleteEntry(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "yaml", "Storage provider to use (available: yaml, firestore)")

	var p struct{ Database }

	fs := configuredFirestore()
	yf := configuredYAML()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "yaml":
			if err := yf.Validate(); err != nil {
				panic(fmt.Sprintf("yaml validation failed: %v", err))
			}
			p.Database = yf
			if err := yf.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("yaml init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
