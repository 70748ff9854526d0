package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/events"
)

// MappingStore handles persistence for one entity kind's mapping table.
// All kinds share the same column layout, so one implementation serves them
// all; the table name and kind are fixed at construction.
type MappingStore struct {
	store *Store
	kind  domain.MappingKind
	table string
}

// Kind returns the entity kind this store persists.
func (ms *MappingStore) Kind() domain.MappingKind {
	return ms.kind
}

const mappingColumns = `mapping_id, source_key, source_name, source_payload, target_id,
	migration_status, proposed_name, proposed_payload, notes, automation_hash,
	created_at, last_updated_at`

// Upsert creates a mapping row for a source entity on first sight (as
// pending_analysis) or refreshes its denormalized source fields on
// re-extraction. Status, proposal, and hash are never touched here.
func (ms *MappingStore) Upsert(sourceKey, sourceName string, sourcePayload *string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (mapping_id, source_key, source_name, source_payload, migration_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET
			source_name = excluded.source_name,
			source_payload = excluded.source_payload,
			last_updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ','now')
	`, ms.table)

	_, err := ms.store.db.Exec(query, uuid.NewString(), sourceKey, sourceName, sourcePayload, domain.StatusPendingAnalysis)
	if err != nil {
		return fmt.Errorf("failed to upsert %s mapping %q: %w", ms.kind, sourceKey, err)
	}
	return nil
}

// List returns every mapping row, ordered by source key.
func (ms *MappingStore) List() ([]*domain.MappingRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY source_key", mappingColumns, ms.table)
	return ms.queryRows(query)
}

// ListByStatus returns every mapping row in the given status.
func (ms *MappingStore) ListByStatus(status domain.MigrationStatus) ([]*domain.MappingRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE migration_status = ? ORDER BY source_key", mappingColumns, ms.table)
	return ms.queryRows(query, status)
}

// GetBySourceKey returns the mapping row for a source key, or nil when no
// such row exists.
func (ms *MappingStore) GetBySourceKey(sourceKey string) (*domain.MappingRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE source_key = ?", mappingColumns, ms.table)
	row := ms.store.db.QueryRow(query, sourceKey)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s mapping %q: %w", ms.kind, sourceKey, err)
	}
	return m, nil
}

// StatusIndex returns migration status by source key, for dependency
// resolution against this kind.
func (ms *MappingStore) StatusIndex() (map[string]domain.MigrationStatus, error) {
	query := fmt.Sprintf("SELECT source_key, migration_status FROM %s", ms.table)
	rows, err := ms.store.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s statuses: %w", ms.kind, err)
	}
	defer rows.Close()

	index := make(map[string]domain.MigrationStatus)
	for rows.Next() {
		var key string
		var status domain.MigrationStatus
		if err := rows.Scan(&key, &status); err != nil {
			return nil, fmt.Errorf("failed to scan %s status: %w", ms.kind, err)
		}
		index[key] = status
	}
	return index, rows.Err()
}

// ResolvedTargets returns target id by source key for rows whose target is
// confirmed to exist (matched or created).
func (ms *MappingStore) ResolvedTargets() (map[string]int64, error) {
	query := fmt.Sprintf(`
		SELECT source_key, target_id FROM %s
		WHERE target_id IS NOT NULL AND migration_status IN (?, ?)
	`, ms.table)
	rows, err := ms.store.db.Query(query, domain.StatusMatchFound, domain.StatusCreationSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s targets: %w", ms.kind, err)
	}
	defer rows.Close()

	targets := make(map[string]int64)
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("failed to scan %s target: %w", ms.kind, err)
		}
		targets[key] = id
	}
	return targets, rows.Err()
}

// Save persists an automated update to a row's status, target, proposal,
// notes, and automation hash, and logs the write to the event log in the
// same transaction.
func (ms *MappingStore) Save(row *domain.MappingRow, eventType string) error {
	return ms.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		query := fmt.Sprintf(`
			UPDATE %s SET
				target_id = ?,
				migration_status = ?,
				proposed_name = ?,
				proposed_payload = ?,
				notes = ?,
				automation_hash = ?,
				last_updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ','now')
			WHERE mapping_id = ?
		`, ms.table)

		res, err := tx.Exec(query, row.TargetID, row.Status, row.ProposedName,
			row.ProposedPayload, row.Notes, row.AutomationHash, row.MappingID)
		if err != nil {
			return fmt.Errorf("failed to save %s mapping %q: %w", ms.kind, row.SourceKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check save result: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%s mapping not found: %s", ms.kind, row.MappingID)
		}

		return ew.LogMappingWrite(tx, ms.kind, row, eventType)
	})
}

// StatusCounts returns the number of rows per migration status.
func (ms *MappingStore) StatusCounts() (map[domain.MigrationStatus]int, error) {
	query := fmt.Sprintf("SELECT migration_status, COUNT(*) FROM %s GROUP BY migration_status", ms.table)
	rows, err := ms.store.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s statuses: %w", ms.kind, err)
	}
	defer rows.Close()

	counts := make(map[domain.MigrationStatus]int)
	for rows.Next() {
		var status domain.MigrationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", ms.kind, err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (ms *MappingStore) queryRows(query string, args ...interface{}) ([]*domain.MappingRow, error) {
	rows, err := ms.store.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s mappings: %w", ms.kind, err)
	}
	defer rows.Close()

	var mappings []*domain.MappingRow
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s mapping: %w", ms.kind, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMapping(r rowScanner) (*domain.MappingRow, error) {
	var m domain.MappingRow
	var createdAt, updatedAt string
	err := r.Scan(&m.MappingID, &m.SourceKey, &m.SourceName, &m.SourcePayload,
		&m.TargetID, &m.Status, &m.ProposedName, &m.ProposedPayload,
		&m.Notes, &m.AutomationHash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if m.CreatedAt, err = domain.ValidateTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if m.LastUpdatedAt, err = domain.ValidateTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("bad last_updated_at %q: %w", updatedAt, err)
	}
	return &m, nil
}
