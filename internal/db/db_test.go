package db

import (
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateAppliesOnce(t *testing.T) {
	database := openTestDB(t)

	applied, err := database.Migrate()
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("expected at least one migration to apply")
	}

	again, err := database.Migrate()
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected no migrations on second run, got %v", again)
	}
}

func TestMigrationStatus(t *testing.T) {
	database := openTestDB(t)

	applied, pending, err := database.MigrationStatus()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(applied) != 0 || len(pending) == 0 {
		t.Fatalf("fresh db: expected only pending migrations, got applied=%v pending=%v", applied, pending)
	}

	if _, err := database.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	applied, pending, err = database.MigrationStatus()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(pending) != 0 || len(applied) == 0 {
		t.Errorf("migrated db: expected no pending migrations, got applied=%v pending=%v", applied, pending)
	}
}

func TestRequiresMigrationError(t *testing.T) {
	database := openTestDB(t)

	err := database.RequiresMigrationError()
	if err == nil {
		t.Fatal("expected error for unmigrated database")
	}
	if !strings.Contains(err.Error(), "jiramine db migrate") {
		t.Errorf("error should mention the migrate command, got: %v", err)
	}

	if _, err := database.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := database.RequiresMigrationError(); err != nil {
		t.Errorf("expected nil after migrating, got: %v", err)
	}
}

func TestMappingTablesExist(t *testing.T) {
	database := openTestDB(t)
	if _, err := database.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	tables := []string{
		"project_mappings", "group_mappings", "tracker_mappings", "role_mappings",
		"membership_mappings", "issue_mappings", "checklist_mappings",
		"source_snapshot", "target_snapshot", "event_log",
	}
	for _, table := range tables {
		var count int
		err := database.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil || count != 1 {
			t.Errorf("expected table %s to exist (err=%v, count=%d)", table, err, count)
		}
	}
}
