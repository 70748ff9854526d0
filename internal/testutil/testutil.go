package testutil

import (
	"path/filepath"
	"testing"

	"github.com/lherron/jiramine/internal/db"
	"github.com/lherron/jiramine/internal/store"
)

// TempDB creates a temporary SQLite mapping database with all migrations
// applied. It is closed automatically when the test finishes.
func TempDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if _, err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// TempStore creates a store backed by a temporary migrated database.
func TempStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(TempDB(t))
}
