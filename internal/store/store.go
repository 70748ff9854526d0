// Package store provides the persistence layer for mapping tables, snapshot
// tables, and the audit event log. Mapping writes are per-row; snapshot
// ingestion is bulk, one transaction per kind with rollback on any failure.
package store

import (
	"database/sql"
	"fmt"

	"github.com/lherron/jiramine/internal/db"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/events"
)

// Store is the root store that provides access to the per-kind mapping
// stores and the snapshot store.
type Store struct {
	db *db.DB

	Projects    *MappingStore
	Groups      *MappingStore
	Trackers    *MappingStore
	Roles       *MappingStore
	Memberships *MappingStore
	Issues      *MappingStore
	Checklists  *MappingStore

	Snapshots *SnapshotStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Projects = &MappingStore{store: s, kind: domain.KindProject, table: "project_mappings"}
	s.Groups = &MappingStore{store: s, kind: domain.KindGroup, table: "group_mappings"}
	s.Trackers = &MappingStore{store: s, kind: domain.KindTracker, table: "tracker_mappings"}
	s.Roles = &MappingStore{store: s, kind: domain.KindRole, table: "role_mappings"}
	s.Memberships = &MappingStore{store: s, kind: domain.KindMembership, table: "membership_mappings"}
	s.Issues = &MappingStore{store: s, kind: domain.KindIssue, table: "issue_mappings"}
	s.Checklists = &MappingStore{store: s, kind: domain.KindChecklist, table: "checklist_mappings"}
	s.Snapshots = &SnapshotStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Mappings returns the mapping store for the given kind.
func (s *Store) Mappings(kind domain.MappingKind) (*MappingStore, error) {
	switch kind {
	case domain.KindProject:
		return s.Projects, nil
	case domain.KindGroup:
		return s.Groups, nil
	case domain.KindTracker:
		return s.Trackers, nil
	case domain.KindRole:
		return s.Roles, nil
	case domain.KindMembership:
		return s.Memberships, nil
	case domain.KindIssue:
		return s.Issues, nil
	case domain.KindChecklist:
		return s.Checklists, nil
	default:
		return nil, fmt.Errorf("unknown mapping kind: %q", kind)
	}
}

// withTx executes fn within a transaction. If fn returns nil, the
// transaction is committed; otherwise it is rolled back.
func (s *Store) withTx(fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}
