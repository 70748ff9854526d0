package store

import (
	"database/sql"
	"fmt"

	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/events"
)

// SourceEntry is one source-system entity in the snapshot.
type SourceEntry struct {
	Key     string
	Name    string
	Payload *string // kind-specific JSON
}

// TargetEntry is one target-system entity in the snapshot.
type TargetEntry struct {
	ID      int64
	Name    string
	Payload *string // kind-specific JSON
}

// SnapshotStore handles the per-system snapshot tables. Snapshots are
// bulk-replaced per kind: one transaction, rollback on any failure, so a
// phase never continues with a half-written snapshot.
type SnapshotStore struct {
	store *Store
}

// ReplaceSource replaces the source snapshot for a kind.
func (ss *SnapshotStore) ReplaceSource(kind domain.MappingKind, entries []SourceEntry) error {
	return ss.store.withTx(func(tx *sql.Tx, _ *events.Writer) error {
		if _, err := tx.Exec("DELETE FROM source_snapshot WHERE kind = ?", kind); err != nil {
			return fmt.Errorf("failed to clear %s source snapshot: %w", kind, err)
		}
		for _, e := range entries {
			if e.Key == "" {
				return &domain.MissingFieldError{Entity: string(kind), Field: "key"}
			}
			if e.Name == "" {
				return &domain.MissingFieldError{Entity: string(kind), Field: "name"}
			}
			_, err := tx.Exec(
				"INSERT INTO source_snapshot (kind, key, name, payload) VALUES (?, ?, ?, ?)",
				kind, e.Key, e.Name, e.Payload)
			if err != nil {
				return fmt.Errorf("failed to insert %s source entry %q: %w", kind, e.Key, err)
			}
		}
		return nil
	})
}

// ReplaceTarget replaces the target snapshot for a kind.
func (ss *SnapshotStore) ReplaceTarget(kind domain.MappingKind, entries []TargetEntry) error {
	return ss.store.withTx(func(tx *sql.Tx, _ *events.Writer) error {
		if _, err := tx.Exec("DELETE FROM target_snapshot WHERE kind = ?", kind); err != nil {
			return fmt.Errorf("failed to clear %s target snapshot: %w", kind, err)
		}
		for _, e := range entries {
			if e.Name == "" {
				return &domain.MissingFieldError{Entity: string(kind), Field: "name"}
			}
			_, err := tx.Exec(
				"INSERT INTO target_snapshot (kind, target_id, name, payload) VALUES (?, ?, ?, ?)",
				kind, e.ID, e.Name, e.Payload)
			if err != nil {
				return fmt.Errorf("failed to insert %s target entry %d: %w", kind, e.ID, err)
			}
		}
		return nil
	})
}

// ListSource returns the source snapshot for a kind, ordered by key.
func (ss *SnapshotStore) ListSource(kind domain.MappingKind) ([]SourceEntry, error) {
	rows, err := ss.store.db.Query(
		"SELECT key, name, payload FROM source_snapshot WHERE kind = ? ORDER BY key", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s source snapshot: %w", kind, err)
	}
	defer rows.Close()

	var entries []SourceEntry
	for rows.Next() {
		var e SourceEntry
		if err := rows.Scan(&e.Key, &e.Name, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s source entry: %w", kind, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListTarget returns the target snapshot for a kind, ordered by id.
func (ss *SnapshotStore) ListTarget(kind domain.MappingKind) ([]TargetEntry, error) {
	rows, err := ss.store.db.Query(
		"SELECT target_id, name, payload FROM target_snapshot WHERE kind = ? ORDER BY target_id", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s target snapshot: %w", kind, err)
	}
	defer rows.Close()

	var entries []TargetEntry
	for rows.Next() {
		var e TargetEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s target entry: %w", kind, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
