package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackgold9/canvas-integration/pkg/types"
)

func TestYAMLProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entries.yaml")

	y := NewYAMLProvider(path)
	require.NoError(t, y.Validate())
	require.NoError(t, y.Init(ctx))
	defer y.Close()

	t.Run("Empty", func(t *testing.T) {
		entries, err := y.ListEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = y.GetEntry(ctx, "missing")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	b := types.Entry{
		ID:             "bbb",
		Title:          "school.instructure.com",
		URL:            "https://school.instructure.com",
		UserID:         "42",
		EncryptedToken: []byte{0x00, 0x01, 0xfe, 0xff},
		Options:        types.Options{UpcomingDays: 10, MissedDays: 3},
		CreatedAt:      created,
		Version:        types.CurrentEntryVersion,
	}
	a := types.Entry{
		ID:        "aaa",
		URL:       "https://other.instructure.com",
		Options:   types.DefaultOptions(),
		CreatedAt: created,
		Version:   types.CurrentEntryVersion,
	}

	t.Run("Put And Get", func(t *testing.T) {
		require.NoError(t, y.PutEntry(ctx, b))
		require.NoError(t, y.PutEntry(ctx, a))

		got, err := y.GetEntry(ctx, "bbb")
		require.NoError(t, err)
		assert.Equal(t, b, got)

		entries, err := y.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "aaa", entries[0].ID)
		assert.Equal(t, "bbb", entries[1].ID)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("Reload", func(t *testing.T) {
		y2 := NewYAMLProvider(path)
		require.NoError(t, y2.Init(ctx))
		got, err := y2.GetEntry(ctx, "bbb")
		require.NoError(t, err)
		assert.Equal(t, b.EncryptedToken, got.EncryptedToken)
		assert.Equal(t, b.Options, got.Options)
		assert.True(t, b.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, y.DeleteEntry(ctx, "aaa"))
		require.NoError(t, y.DeleteEntry(ctx, "aaa"))
		_, err := y.GetEntry(ctx, "aaa")
		assert.ErrorIs(t, err, ErrEntryNotFound)

		y2 := NewYAMLProvider(path)
		require.NoError(t, y2.Init(ctx))
		entries, err := y2.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "bbb", entries[0].ID)
	})

	t.Run("Empty ID", func(t *testing.T) {
		assert.Error(t, y.PutEntry(ctx, types.Entry{}))
	})
}

func TestYAMLProviderMigrates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`entries:
  - id: old
    url: https://school.instructure.com
    user_id: "7"
`), 0o600))

	y := NewYAMLProvider(path)
	require.NoError(t, y.Init(ctx))

	e, err := y.GetEntry(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, types.CurrentEntryVersion, e.Version)
	assert.Equal(t, types.DefaultOptions(), e.Options)
	assert.Equal(t, "7", e.UserID)
}

func TestYAMLProviderInvalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entries: [[["), 0o600))
	assert.Error(t, NewYAMLProvider(bad).Init(ctx))

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("entries:\n  - url: https://x\n"), 0o600))
	assert.Error(t, NewYAMLProvider(noID).Init(ctx))

	assert.Error(t, NewYAMLProvider(" ").Validate())
}
