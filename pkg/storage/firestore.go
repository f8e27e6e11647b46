package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const entriesCollection = "entries"

// FirestoreProvider implements Database using Google Cloud Firestore. Each
// entry is one document holding the JSON encoded entry and its version.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) entryDoc(id string) (*firestore.DocumentRef, error) {
	if id == "" {
		return nil, fmt.Errorf("entry id cannot be empty")
	}
	return f.client.Collection(entriesCollection).Doc(id), nil
}

// decodeEntry reads the json field of doc and migrates the entry forward.
func decodeEntry(ctx context.Context, doc *firestore.DocumentSnapshot) (types.Entry, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "entry doc missing json", slog.String("entryID", doc.Ref.ID))
		return types.Entry{}, fmt.Errorf("entry %s missing json: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "entry doc json not string", slog.String("entryID", doc.Ref.ID))
		return types.Entry{}, fmt.Errorf("entry %s json not string", doc.Ref.ID)
	}

	var e types.Entry
	if err := json.Unmarshal([]byte(jsonStr), &e); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal entry", slog.String("entryID", doc.Ref.ID), slog.Any("error", err))
		return types.Entry{}, fmt.Errorf("failed to unmarshal entry %s: %w", doc.Ref.ID, err)
	}
	e.ID = doc.Ref.ID
	e, _ = types.MigrateEntry(e)
	return e, nil
}

// ListEntries implements Database. Malformed documents are skipped.
func (f *FirestoreProvider) ListEntries(ctx context.Context) ([]types.Entry, error) {
	iter := f.client.Collection(entriesCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var entries []types.Entry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating entries: %w", err)
		}

		e, err := decodeEntry(ctx, doc)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetEntry implements Database.
func (f *FirestoreProvider) GetEntry(ctx context.Context, id string) (types.Entry, error) {
	ref, err := f.entryDoc(id)
	if err != nil {
		return types.Entry{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Entry{}, ErrEntryNotFound
		}
		return types.Entry{}, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return decodeEntry(ctx, doc)
}

// PutEntry implements Database. It stores the entry as a JSON string so the
// document shape does not change when fields are added.
func (f *FirestoreProvider) PutEntry(ctx context.Context, entry types.Entry) error {
	ref, err := f.entryDoc(entry.ID)
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": entry.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.ID, err)
	}
	return nil
}

// DeleteEntry implements Database.
func (f *FirestoreProvider) DeleteEntry(ctx context.Context, id string) error {
	ref, err := f.entryDoc(id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}
