// Package push performs the target-system write for mapping rows in a ready
// status. Two independent gates control mutation: confirm (intent to act)
// and dry-run (explicit no-op preview). Each row commits its own outcome
// immediately after the external call, so a crash mid-batch leaves the
// mapping table accurately reflecting everything completed so far.
package push

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lherron/jiramine/internal/autohash"
	"github.com/lherron/jiramine/internal/domain"
)

// maxNoteLen bounds the error summary stored in a row's notes.
const maxNoteLen = 500

// Options are the caller-controlled push gates.
type Options struct {
	Confirm bool
	DryRun  bool
}

// Action is one planned target-system write for one ready mapping row.
type Action struct {
	Row *domain.MappingRow

	// Plan is the human-readable description printed in dry-run mode.
	Plan string

	// Execute performs the create/assign call and returns the identifier
	// of the created target entity.
	Execute func(ctx context.Context) (int64, error)
}

// Result records the outcome of one executed action.
type Result struct {
	MappingID string
	SourceKey string
	TargetID  int64
	Err       error
}

// Summary accumulates the push-phase counts.
type Summary struct {
	Kind      domain.MappingKind
	Planned   int
	Attempted int
	Succeeded int
	Failed    int
	Results   []Result
}

// Executor runs push actions for one entity kind.
type Executor struct {
	Kind          domain.MappingKind
	SuccessStatus domain.MigrationStatus
	FailureStatus domain.MigrationStatus

	// Probe, when set, is called once before any mutation. A probe error
	// fails the entire push phase up front rather than attempting partial
	// work (used to require the extended API plugin's marker header).
	Probe func(ctx context.Context) error

	// Save persists a row after its outcome is recorded.
	Save func(row *domain.MappingRow) error

	Out    io.Writer
	Logger *slog.Logger
}

// Run applies the gating matrix and, when confirmed, executes every action
// independently: a failure never aborts the batch.
func (e *Executor) Run(ctx context.Context, opts Options, actions []Action) (*Summary, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sum := &Summary{Kind: e.Kind, Planned: len(actions)}

	if opts.DryRun {
		fmt.Fprintf(e.Out, "dry run: %d %s push action(s) planned, nothing executed\n", len(actions), e.Kind)
		for _, a := range actions {
			fmt.Fprintf(e.Out, "  would push %s %q:\n%s\n", e.Kind, a.Row.SourceKey, indent(a.Plan))
		}
		return sum, nil
	}

	if !opts.Confirm {
		fmt.Fprintf(e.Out, "%d %s row(s) ready; nothing pushed (pass --confirm-push to execute, --dry-run to preview)\n", len(actions), e.Kind)
		return sum, nil
	}

	if e.Probe != nil {
		if err := e.Probe(ctx); err != nil {
			return sum, fmt.Errorf("push %s: %w", e.Kind, err)
		}
	}

	for _, a := range actions {
		sum.Attempted++
		res := Result{MappingID: a.Row.MappingID, SourceKey: a.Row.SourceKey}

		id, err := a.Execute(ctx)
		if err != nil {
			res.Err = err
			sum.Failed++
			a.Row.Status = e.FailureStatus
			a.Row.SetNotes(truncate(err.Error(), maxNoteLen))
			logger.Warn("push failed",
				"kind", string(e.Kind),
				"source_key", a.Row.SourceKey,
				"error", err)
		} else {
			res.TargetID = id
			sum.Succeeded++
			a.Row.Status = e.SuccessStatus
			a.Row.TargetID = &id
			a.Row.ClearNotes()
			logger.Info("push succeeded",
				"kind", string(e.Kind),
				"source_key", a.Row.SourceKey,
				"target_id", id)
		}

		autohash.Stamp(a.Row)
		if err := e.Save(a.Row); err != nil {
			return sum, fmt.Errorf("save %s mapping %q: %w", e.Kind, a.Row.SourceKey, err)
		}
		sum.Results = append(sum.Results, res)
	}

	fmt.Fprintf(e.Out, "%s push: %d attempted, %d succeeded, %d failed\n", e.Kind, sum.Attempted, sum.Succeeded, sum.Failed)
	return sum, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
