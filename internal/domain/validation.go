package domain

import (
	"fmt"
	"time"
)

// allStatuses enumerates every valid migration status.
var allStatuses = map[MigrationStatus]bool{
	StatusPendingAnalysis:    true,
	StatusMatchFound:         true,
	StatusReadyForCreation:   true,
	StatusReadyForAssignment: true,
	StatusManualIntervention: true,
	StatusAwaitingProject:    true,
	StatusAwaitingGroup:      true,
	StatusAwaitingRole:       true,
	StatusAwaitingIssue:      true,
	StatusCreationSuccess:    true,
	StatusCreationFailed:     true,
	StatusAssignmentRecorded: true,
}

// ValidateStatus validates a migration status value.
func ValidateStatus(s string) error {
	if !allStatuses[MigrationStatus(s)] {
		return fmt.Errorf("invalid migration status: %q", s)
	}
	return nil
}

// ValidateKind validates a mapping kind.
func ValidateKind(kind string) error {
	for _, k := range Kinds {
		if MappingKind(kind) == k {
			return nil
		}
	}
	return fmt.Errorf("invalid mapping kind: %q (must be one of: project, group, tracker, role, membership, issue, checklist)", kind)
}

// ValidateTimestamp validates and parses an ISO8601 timestamp.
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
	}
	return t, nil
}

// MissingFieldError is returned when a required field is absent in an
// otherwise well-formed source record. Callers treat it as fatal to the
// containing bulk operation.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s record is missing required field %q", e.Entity, e.Field)
}
