// Package testutil provides shared test helpers for setting up output
// directories and cache databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/storage"
)

// TestDB creates a temporary SQLite cache that is automatically closed.
func TestDB(t *testing.T) *cache.DB {
	t.Helper()
	db, err := cache.Open(filepath.Join(t.TempDir(), "marginalia-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDir creates a temporary directory with a storage provider rooted at it.
func TestDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
