// Package recon implements the reconciliation engine: given mapping rows, a
// target-snapshot match index, and an ordered list of dependency resolvers,
// it decides for every row whether it matches an existing target entity,
// needs creation, is blocked on an unresolved prerequisite, or requires
// manual attention. One generic engine is instantiated per entity kind.
package recon

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lherron/jiramine/internal/autohash"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
)

// DepState classifies the outcome of a dependency check.
type DepState int

const (
	DepSatisfied DepState = iota
	DepMissing
	DepNotReady
)

// DepResult is the outcome of resolving one dependency for one row.
type DepResult struct {
	State  DepState
	Key    string                 // source key of the referenced mapping
	Status domain.MigrationStatus // current status when State == DepNotReady
}

// Dependency checks one prerequisite mapping kind for a row. Dependencies
// run in declaration order; the first unmet one short-circuits the rest.
type Dependency struct {
	Kind        string
	AwaitStatus domain.MigrationStatus
	Resolve     func(row *domain.MappingRow) DepResult
}

// ManualError signals that a proposal cannot be completed automatically and
// the row must be routed to manual intervention. The reason is recorded
// verbatim in the row's notes.
type ManualError struct {
	Reason string
}

func (e *ManualError) Error() string {
	return e.Reason
}

// Config parameterizes the engine for one entity kind.
type Config struct {
	Kind domain.MappingKind

	// Allowed is the set of re-enterable starting statuses. Rows in any
	// other status are skipped, which protects terminal and already
	// resolved rows from being reprocessed.
	Allowed []domain.MigrationStatus

	// ReadyStatus is assigned when the row needs a target-system write
	// (ready_for_creation or ready_for_assignment).
	ReadyStatus domain.MigrationStatus

	// RecordedStatus is the terminal status assigned when AlreadyRecorded
	// detects a pre-existing identical association in the target snapshot.
	RecordedStatus domain.MigrationStatus

	// Dependencies, in fixed priority order. May be empty.
	Dependencies []Dependency

	// Match is the target-snapshot name index. Nil disables matching:
	// rows with satisfied dependencies go straight to ReadyStatus.
	Match *match.Index

	// Propose fills the row's proposed fields. matched is non-nil when the
	// matcher found exactly one candidate. Returning *ManualError routes
	// the row to manual intervention; any other error aborts the run.
	Propose func(row *domain.MappingRow, matched *match.Candidate) error

	// AlreadyRecorded reports whether an identical association already
	// exists in the target snapshot, returning its identifier. Optional.
	AlreadyRecorded func(row *domain.MappingRow) (int64, bool)

	// Save persists a changed row. Called only when the automatable field
	// tuple actually changed.
	Save func(row *domain.MappingRow) error

	Logger *slog.Logger
}

// Summary accumulates the per-run reconciliation counts.
type Summary struct {
	Kind            domain.MappingKind
	Total           int
	Matched         int
	Ready           int
	ManualReview    int
	ManualOverrides int
	Skipped         int
	Unchanged       int
	AlreadyRecorded int
	Awaiting        map[string]int
}

// outcome classifies what decide did to a row, for summary accounting.
type outcome int

const (
	outMatched outcome = iota
	outReady
	outManual
	outAwaiting
	outRecorded
)

// Reconcile runs the per-row state machine over all rows, persisting only
// rows whose automatable fields changed. Rows are processed strictly
// sequentially; ambiguity and unresolved dependencies become row state,
// anything else aborts the run.
func Reconcile(rows []*domain.MappingRow, cfg Config) (*Summary, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sum := &Summary{Kind: cfg.Kind, Total: len(rows), Awaiting: make(map[string]int)}

	allowed := make(map[domain.MigrationStatus]bool, len(cfg.Allowed))
	for _, s := range cfg.Allowed {
		allowed[s] = true
	}

	for _, row := range rows {
		if !allowed[row.Status] {
			sum.Skipped++
			continue
		}

		// A stored hash that no longer matches the stored fields means a
		// human edited the row without going through the engine.
		if !autohash.Verify(row) {
			sum.ManualOverrides++
			sum.Skipped++
			logger.Warn("manual override detected, row skipped",
				"kind", string(cfg.Kind),
				"source_key", row.SourceKey,
				"status", string(row.Status))
			continue
		}

		before := autohash.ForRow(row)

		out, depKind, err := decide(row, cfg)
		if err != nil {
			return sum, fmt.Errorf("reconcile %s %q: %w", cfg.Kind, row.SourceKey, err)
		}

		after := autohash.ForRow(row)
		if after == before {
			sum.Unchanged++
			continue
		}

		row.AutomationHash = &after
		if err := cfg.Save(row); err != nil {
			return sum, fmt.Errorf("save %s mapping %q: %w", cfg.Kind, row.SourceKey, err)
		}

		switch out {
		case outMatched:
			sum.Matched++
		case outReady:
			sum.Ready++
		case outManual:
			sum.ManualReview++
			logger.Warn("manual intervention required",
				"kind", string(cfg.Kind),
				"source_key", row.SourceKey,
				"notes", noteText(row))
		case outAwaiting:
			sum.Awaiting[depKind]++
		case outRecorded:
			sum.AlreadyRecorded++
		}
	}

	return sum, nil
}

// decide mutates the row into its new status and proposal. Returns the
// outcome class and, for awaiting outcomes, the blocking dependency kind.
func decide(row *domain.MappingRow, cfg Config) (outcome, string, error) {
	for _, dep := range cfg.Dependencies {
		res := dep.Resolve(row)
		if res.State == DepSatisfied {
			continue
		}
		row.Status = dep.AwaitStatus
		switch res.State {
		case DepMissing:
			row.SetNotes(fmt.Sprintf("%s mapping missing for %q", dep.Kind, res.Key))
		case DepNotReady:
			row.SetNotes(fmt.Sprintf("%s mapping for %q not ready yet (status: %s)", dep.Kind, res.Key, res.Status))
		}
		return outAwaiting, dep.Kind, nil
	}

	var matched *match.Candidate
	if cfg.Match != nil {
		switch res := cfg.Match.Lookup(row.SourceName); res.Kind {
		case match.AmbiguousMatch:
			row.Status = domain.StatusManualIntervention
			row.TargetID = nil
			row.SetNotes(fmt.Sprintf("ambiguous match: %d target entities share the name %q", len(res.Candidates), row.SourceName))
			return outManual, "", nil
		case match.OneMatch:
			c := res.Candidate
			matched = &c
		}
	}

	if matched != nil {
		row.Status = domain.StatusMatchFound
		row.TargetID = &matched.ID
		row.ProposedName = &matched.Name
	} else {
		row.Status = cfg.ReadyStatus
		name := row.SourceName
		row.ProposedName = &name
	}
	row.ClearNotes()

	if cfg.Propose != nil {
		if err := cfg.Propose(row, matched); err != nil {
			var manual *ManualError
			if errors.As(err, &manual) {
				row.Status = domain.StatusManualIntervention
				row.SetNotes(manual.Reason)
				return outManual, "", nil
			}
			return 0, "", err
		}
	}

	if matched != nil {
		return outMatched, "", nil
	}

	// An identical association may already exist in the target; record it
	// instead of re-pushing a pre-existing one.
	if cfg.AlreadyRecorded != nil {
		if id, ok := cfg.AlreadyRecorded(row); ok {
			row.Status = cfg.RecordedStatus
			row.TargetID = &id
			row.ClearNotes()
			return outRecorded, "", nil
		}
	}

	return outReady, "", nil
}

func noteText(row *domain.MappingRow) string {
	if row.Notes == nil {
		return ""
	}
	return *row.Notes
}

// Format renders the summary as operator-facing text.
func (s *Summary) Format() string {
	out := fmt.Sprintf("%s: %d row(s): %d matched, %d ready, %d manual review, %d already recorded, %d unchanged, %d skipped (%d manual overrides)",
		s.Kind, s.Total, s.Matched, s.Ready, s.ManualReview, s.AlreadyRecorded, s.Unchanged, s.Skipped, s.ManualOverrides)
	for _, dep := range [...]string{"project", "group", "role", "issue"} {
		if n := s.Awaiting[dep]; n > 0 {
			out += fmt.Sprintf(", %d awaiting %s", n, dep)
		}
	}
	return out
}
