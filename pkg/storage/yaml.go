package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"gopkg.in/yaml.v3"

	"github.com/blackgold9/canvas-integration/pkg/types"
)

// YAMLProvider implements Database on top of a single YAML file. The file
// is read once at Init and rewritten on every change.
type YAMLProvider struct {
	path string

	mu      sync.Mutex
	entries map[string]types.Entry
}

var _ Database = (*YAMLProvider)(nil)

type yamlFile struct {
	Entries []yamlEntry `yaml:"entries"`
}

type yamlEntry struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	URL       string    `yaml:"url"`
	UserID    string    `yaml:"user_id"`
	Token     string    `yaml:"encrypted_token,omitempty"`
	Options   yamlOpts  `yaml:"options"`
	CreatedAt time.Time `yaml:"created_at"`
	Version   int       `yaml:"version"`
}

type yamlOpts struct {
	UpcomingDays int `yaml:"upcoming_days,omitempty"`
	MissedDays   int `yaml:"missed_days,omitempty"`
}

func configuredYAML() *YAMLProvider {
	path := lflag.String("entries-file", "entries.yaml", "Path of the YAML file entries are stored in when using the yaml storage provider")

	y := &YAMLProvider{}
	lflag.Do(func() {
		y.path = *path
	})
	return y
}

// NewYAMLProvider returns a provider backed by the file at path. Init must
// be called before use.
func NewYAMLProvider(path string) *YAMLProvider {
	return &YAMLProvider{path: path}
}

// Validate checks if the provider is properly configured.
func (y *YAMLProvider) Validate() error {
	if strings.TrimSpace(y.path) == "" {
		return errors.New("entries-file is required")
	}
	return nil
}

// Init loads the file. A missing file is treated as having no entries.
func (y *YAMLProvider) Init(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	y.entries = make(map[string]types.Entry)
	b, err := os.ReadFile(y.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read entries file %s: %w", y.path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("failed to parse entries file %s: %w", y.path, err)
	}
	for _, ye := range f.Entries {
		e, err := ye.toEntry()
		if err != nil {
			return fmt.Errorf("invalid entry %s in %s: %w", ye.ID, y.path, err)
		}
		e, _ = types.MigrateEntry(e)
		y.entries[e.ID] = e
	}
	return nil
}

// Close implements Database.
func (y *YAMLProvider) Close() error {
	return nil
}

// ListEntries implements Database.
func (y *YAMLProvider) ListEntries(ctx context.Context) ([]types.Entry, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.sortedLocked(), nil
}

// GetEntry implements Database.
func (y *YAMLProvider) GetEntry(ctx context.Context, id string) (types.Entry, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	e, ok := y.entries[id]
	if !ok {
		return types.Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// PutEntry implements Database.
func (y *YAMLProvider) PutEntry(ctx context.Context, entry types.Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry id cannot be empty")
	}
	y.mu.Lock()
	defer y.mu.Unlock()

	prev, existed := y.entries[entry.ID]
	y.entries[entry.ID] = entry
	if err := y.writeLocked(); err != nil {
		if existed {
			y.entries[entry.ID] = prev
		} else {
			delete(y.entries, entry.ID)
		}
		return err
	}
	return nil
}

// DeleteEntry implements Database.
func (y *YAMLProvider) DeleteEntry(ctx context.Context, id string) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	prev, ok := y.entries[id]
	if !ok {
		return nil
	}
	delete(y.entries, id)
	if err := y.writeLocked(); err != nil {
		y.entries[id] = prev
		return err
	}
	return nil
}

func (y *YAMLProvider) sortedLocked() []types.Entry {
	entries := make([]types.Entry, 0, len(y.entries))
	for _, e := range y.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b types.Entry) int {
		return strings.Compare(a.ID, b.ID)
	})
	return entries
}

// writeLocked replaces the file through a temporary file in the same
// directory so a crash never leaves it half written.
func (y *YAMLProvider) writeLocked() error {
	var f yamlFile
	for _, e := range y.sortedLocked() {
		f.Entries = append(f.Entries, fromEntry(e))
	}
	b, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(y.path), "."+filepath.Base(y.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp entries file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write entries file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod entries file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close entries file: %w", err)
	}
	if err := os.Rename(tmp.Name(), y.path); err != nil {
		return fmt.Errorf("failed to replace entries file: %w", err)
	}
	return nil
}

func fromEntry(e types.Entry) yamlEntry {
	ye := yamlEntry{
		ID:     e.ID,
		Title:  e.Title,
		URL:    e.URL,
		UserID: e.UserID,
		Options: yamlOpts{
			UpcomingDays: e.Options.UpcomingDays,
			MissedDays:   e.Options.MissedDays,
		},
		CreatedAt: e.CreatedAt.UTC(),
		Version:   e.Version,
	}
	if len(e.EncryptedToken) > 0 {
		ye.Token = base64.StdEncoding.EncodeToString(e.EncryptedToken)
	}
	return ye
}

func (ye yamlEntry) toEntry() (types.Entry, error) {
	if ye.ID == "" {
		return types.Entry{}, errors.New("missing id")
	}
	e := types.Entry{
		ID:     ye.ID,
		Title:  ye.Title,
		URL:    ye.URL,
		UserID: ye.UserID,
		Options: types.Options{
			UpcomingDays: ye.Options.UpcomingDays,
			MissedDays:   ye.Options.MissedDays,
		},
		CreatedAt: ye.CreatedAt,
		Version:   ye.Version,
	}
	if ye.Token != "" {
		token, err := base64.StdEncoding.DecodeString(ye.Token)
		if err != nil {
			return types.Entry{}, fmt.Errorf("invalid encrypted_token: %w", err)
		}
		e.EncryptedToken = token
	}
	return e, nil
}
