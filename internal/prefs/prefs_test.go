package prefs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/prefs"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	require.Equal(t, "fallback", store.Get("anything", "fallback"))
	require.Equal(t, prefs.ViewGrid, store.View())
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	store, err := prefs.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("theme", "dark"))
	require.NoError(t, store.SetView(prefs.ViewList))

	reopened, err := prefs.Open(path)
	require.NoError(t, err)
	require.Equal(t, "dark", reopened.Get("theme", ""))
	require.Equal(t, prefs.ViewList, reopened.View())
}

func TestSetViewRejectsUnknownMode(t *testing.T) {
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	require.Error(t, store.SetView("carousel"))
	require.Equal(t, prefs.ViewGrid, store.View())
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := prefs.Open(path)
	require.Error(t, err)
}

func TestUnknownStoredViewFallsBackToGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"viewMode":"carousel"}`), 0o644))

	store, err := prefs.Open(path)
	require.NoError(t, err)
	require.Equal(t, prefs.ViewGrid, store.View())
}

func TestFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := prefs.Open(filepath.Join(dir, "prefs.json"))
	require.NoError(t, err)
	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "prefs.json", entries[0].Name())
}
