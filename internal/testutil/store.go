package testutil

import (
	"path/filepath"
	"testing"

	"github.com/HerbHall/wolgate/internal/store"
)

// NewStore returns an in-memory store closed at the end of the test.
func NewStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	return openStore(t, store.MemoryPath)
}

// NewFileStore returns a store backed by a file in a per-test temporary
// directory, along with the file path.
func NewFileStore(t testing.TB) (*store.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wolgate.db")
	return openStore(t, path), path
}

func openStore(t testing.TB, path string) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(path)
	if err != nil {
		t.Fatalf("testutil: open store %q: %v", path, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
