package domain

import (
	"encoding/json"
	"time"
)

// MappingKind identifies one migrated entity kind. Each kind has its own
// mapping table and its own phase plan.
type MappingKind string

const (
	KindProject    MappingKind = "project"
	KindGroup      MappingKind = "group"
	KindTracker    MappingKind = "tracker"
	KindRole       MappingKind = "role"
	KindMembership MappingKind = "membership"
	KindIssue      MappingKind = "issue"
	KindChecklist  MappingKind = "checklist"
)

// Kinds lists every mapping kind in migration dependency order.
var Kinds = []MappingKind{
	KindProject, KindGroup, KindTracker, KindRole,
	KindMembership, KindIssue, KindChecklist,
}

// MigrationStatus is the state-machine state of a mapping row.
type MigrationStatus string

const (
	StatusPendingAnalysis    MigrationStatus = "pending_analysis"
	StatusMatchFound         MigrationStatus = "match_found"
	StatusReadyForCreation   MigrationStatus = "ready_for_creation"
	StatusReadyForAssignment MigrationStatus = "ready_for_assignment"
	StatusManualIntervention MigrationStatus = "manual_intervention_required"
	StatusAwaitingProject    MigrationStatus = "awaiting_project_mapping"
	StatusAwaitingGroup      MigrationStatus = "awaiting_group_mapping"
	StatusAwaitingRole       MigrationStatus = "awaiting_role_mapping"
	StatusAwaitingIssue      MigrationStatus = "awaiting_issue_mapping"
	StatusCreationSuccess    MigrationStatus = "creation_success"
	StatusCreationFailed     MigrationStatus = "creation_failed"
	StatusAssignmentRecorded MigrationStatus = "assignment_recorded"
)

// Resolved reports whether a mapping in this status counts as a satisfied
// dependency for other mappings: the target entity is confirmed to exist,
// either matched or created.
func (s MigrationStatus) Resolved() bool {
	return s == StatusMatchFound || s == StatusCreationSuccess
}

// MappingRow is the persisted correspondence record between one source
// entity (or source-entity tuple) and its target counterpart. All kinds
// share this layout; kind-specific fields live in the JSON payload columns.
type MappingRow struct {
	MappingID       string          `json:"mapping_id" db:"mapping_id"`
	SourceKey       string          `json:"source_key" db:"source_key"`
	SourceName      string          `json:"source_name" db:"source_name"`
	SourcePayload   *string         `json:"source_payload,omitempty" db:"source_payload"` // JSON
	TargetID        *int64          `json:"target_id,omitempty" db:"target_id"`
	Status          MigrationStatus `json:"migration_status" db:"migration_status"`
	ProposedName    *string         `json:"proposed_name,omitempty" db:"proposed_name"`
	ProposedPayload *string         `json:"proposed_payload,omitempty" db:"proposed_payload"` // JSON
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	AutomationHash  *string         `json:"automation_hash,omitempty" db:"automation_hash"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	LastUpdatedAt   time.Time       `json:"last_updated_at" db:"last_updated_at"`
}

// SetNotes sets the notes field.
func (m *MappingRow) SetNotes(s string) {
	m.Notes = &s
}

// ClearNotes removes any stored note.
func (m *MappingRow) ClearNotes() {
	m.Notes = nil
}

// GetSourcePayload parses the source payload JSON into v.
// A missing payload leaves v untouched.
func (m *MappingRow) GetSourcePayload(v interface{}) error {
	if m.SourcePayload == nil || *m.SourcePayload == "" {
		return nil
	}
	return json.Unmarshal([]byte(*m.SourcePayload), v)
}

// SetSourcePayload marshals v into the source payload column.
func (m *MappingRow) SetSourcePayload(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(data)
	m.SourcePayload = &s
	return nil
}

// GetProposedPayload parses the proposed payload JSON into v.
// A missing payload leaves v untouched.
func (m *MappingRow) GetProposedPayload(v interface{}) error {
	if m.ProposedPayload == nil || *m.ProposedPayload == "" {
		return nil
	}
	return json.Unmarshal([]byte(*m.ProposedPayload), v)
}

// SetProposedPayload marshals v into the proposed payload column.
func (m *MappingRow) SetProposedPayload(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(data)
	m.ProposedPayload = &s
	return nil
}

// TrackerSource holds the kind-specific snapshot fields of a Jira issue type.
type TrackerSource struct {
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
}

// TrackerProposal is the engine's proposal for a Redmine tracker.
type TrackerProposal struct {
	Description     *string `json:"description,omitempty"`
	DefaultStatusID *int64  `json:"default_status_id,omitempty"`
}

// ProjectSource holds the kind-specific snapshot fields of a Jira project.
type ProjectSource struct {
	JiraID      string `json:"jira_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProjectProposal is the engine's proposal for a Redmine project.
type ProjectProposal struct {
	Identifier  string  `json:"identifier"`
	Description *string `json:"description,omitempty"`
}

// GroupSource holds the kind-specific snapshot fields of a Jira group.
type GroupSource struct {
	GroupID string `json:"group_id,omitempty"`
}

// RoleSource holds the kind-specific snapshot fields of a Jira project role.
type RoleSource struct {
	Description string `json:"description,omitempty"`
}

// MembershipSource identifies one (project, role, group) assignment in Jira.
// RoleID is the Jira role id, the natural key of the role mapping.
type MembershipSource struct {
	ProjectKey string `json:"project_key"`
	RoleID     string `json:"role_id"`
	RoleName   string `json:"role_name"`
	GroupName  string `json:"group_name"`
}

// MembershipProposal carries the resolved Redmine identifiers for an
// assignment that is ready to be recorded.
type MembershipProposal struct {
	ProjectID int64 `json:"project_id"`
	GroupID   int64 `json:"group_id"`
	RoleID    int64 `json:"role_id"`
}

// MembershipTarget mirrors one membership row of the Redmine snapshot.
type MembershipTarget struct {
	ProjectID int64   `json:"project_id"`
	GroupID   int64   `json:"group_id"`
	RoleIDs   []int64 `json:"role_ids"`
}

// IssueSource holds the kind-specific snapshot fields of a Jira issue.
type IssueSource struct {
	ProjectKey  string `json:"project_key"`
	Description string `json:"description,omitempty"`
}

// IssueProposal is the engine's proposal for a Redmine issue.
type IssueProposal struct {
	ProjectID   int64   `json:"project_id"`
	Description *string `json:"description,omitempty"`
}

// ChecklistItem is one checklist entry attached to an issue.
type ChecklistItem struct {
	Subject string `json:"subject"`
	Done    bool   `json:"done,omitempty"`
}

// ChecklistSource holds the parsed checklist items of one Jira issue.
type ChecklistSource struct {
	Items []ChecklistItem `json:"items"`
}

// ChecklistProposal carries the resolved Redmine issue id and the items the
// target checklist should hold after push.
type ChecklistProposal struct {
	IssueID int64           `json:"issue_id"`
	Items   []ChecklistItem `json:"items"`
}

// Event represents an entry in the audit event log. Every automated mapping
// write is recorded so out-of-band edits can be distinguished after the fact.
type Event struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Kind      string    `json:"kind" db:"kind"`
	MappingID *string   `json:"mapping_id,omitempty" db:"mapping_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Payload   *string   `json:"payload,omitempty" db:"payload"` // JSON
}
