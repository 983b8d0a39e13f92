// Package testutil provides shared test helpers for setting up piece trees
// and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/luzzle/luzzle/internal/db"
	"github.com/luzzle/luzzle/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *db.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "luzzle-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	database, err := db.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// TestTree creates a temporary piece tree with a storage.Provider.
func TestTree(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
