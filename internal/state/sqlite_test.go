package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_EmptyLoadsZero(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSQLiteStore_SaveIsUpsert(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	first := RunState{LastRunID: "abc123", LastRunDate: "2026-08-23", Sequence: 1}
	require.NoError(t, store.Save(ctx, first))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := RunState{LastRunID: "xyz789", LastRunDate: "2026-08-23", Sequence: 2}
	require.NoError(t, store.Save(ctx, second))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestSQLiteStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "geodaily.db")
	store, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(),
		RunState{LastRunID: "x", LastRunDate: "2026-08-23", Sequence: 1}))
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("", nil)
	assert.Error(t, err)
}
