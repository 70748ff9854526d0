// Package events writes the audit event log. Every automated mapping write
// is recorded so operators can trace what the engine did and when.
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/jiramine/internal/domain"
)

// Writer handles writing events to the event log.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Log writes an event, within tx when one is given.
func (w *Writer) Log(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (kind, mapping_id, event_type, payload)
		VALUES (?, ?, ?, ?)
	`
	executor := w.getExecutor(tx)
	if _, err := executor.Exec(query, event.Kind, event.MappingID, event.EventType, event.Payload); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogMappingWrite records one automated mapping update (reconcile or push).
func (w *Writer) LogMappingWrite(tx *sql.Tx, kind domain.MappingKind, row *domain.MappingRow, eventType string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"source_key": row.SourceKey,
		"status":     row.Status,
	})
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	return w.Log(tx, &domain.Event{
		Kind:      string(kind),
		MappingID: &row.MappingID,
		EventType: eventType,
		Payload:   &payloadStr,
	})
}

// Recent returns the newest events, most recent first. kind filters to one
// mapping kind when non-empty.
func Recent(db *sql.DB, kind string, limit int) ([]*domain.Event, error) {
	query := `
		SELECT id, timestamp, kind, mapping_id, event_type, payload
		FROM event_log
	`
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var e domain.Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.MappingID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Timestamp, err = domain.ValidateTimestamp(ts); err != nil {
			return nil, fmt.Errorf("bad event timestamp %q: %w", ts, err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// getExecutor returns the appropriate executor (tx or db).
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
