// Package units wires the generic engine to each migrated entity kind. A
// unit is a fixed phase plan: snapshot extraction from both systems, then
// reconciliation, then push. The phases are independently selectable but
// always run in that order.
package units

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/lherron/jiramine/internal/config"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/jira"
	"github.com/lherron/jiramine/internal/match"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/push"
	"github.com/lherron/jiramine/internal/recon"
	"github.com/lherron/jiramine/internal/redmine"
	"github.com/lherron/jiramine/internal/store"
)

// App bundles the collaborators a unit needs.
type App struct {
	Store   *store.Store
	Jira    *jira.Client
	Redmine *redmine.Client
	Config  *config.Config
	Logger  *slog.Logger
	Out     io.Writer
	Push    push.Options
}

// Plan returns the phase plan for one entity kind.
func Plan(app *App, kind domain.MappingKind) ([]phase.Phase, error) {
	switch kind {
	case domain.KindProject:
		return app.projectPhases(), nil
	case domain.KindGroup:
		return app.groupPhases(), nil
	case domain.KindTracker:
		return app.trackerPhases(), nil
	case domain.KindRole:
		return app.rolePhases(), nil
	case domain.KindMembership:
		return app.membershipPhases(), nil
	case domain.KindIssue:
		return app.issuePhases(), nil
	case domain.KindChecklist:
		return app.checklistPhases(), nil
	default:
		return nil, fmt.Errorf("unknown migration unit: %q", kind)
	}
}

// creationAllowed is the re-enterable starting-status set for kinds whose
// ready state is ready_for_creation and that have no dependencies.
var creationAllowed = []domain.MigrationStatus{
	domain.StatusPendingAnalysis,
	domain.StatusMatchFound,
	domain.StatusReadyForCreation,
	domain.StatusManualIntervention,
}

// jsonPayload marshals a kind-specific payload for a snapshot entry.
func jsonPayload(v interface{}) (*string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	s := string(data)
	return &s, nil
}

// jsonDecode parses a snapshot payload.
func jsonDecode(payload string, v interface{}) error {
	return json.Unmarshal([]byte(payload), v)
}

// targetIndex builds the matcher index from a kind's target snapshot.
func (app *App) targetIndex(kind domain.MappingKind) (*match.Index, error) {
	entries, err := app.Store.Snapshots.ListTarget(kind)
	if err != nil {
		return nil, err
	}
	candidates := make([]match.Candidate, 0, len(entries))
	for _, e := range entries {
		c := match.Candidate{ID: e.ID, Name: e.Name}
		if e.Payload != nil {
			c.Payload = *e.Payload
		}
		candidates = append(candidates, c)
	}
	return match.NewIndex(candidates), nil
}

// reconcile upserts mapping rows from the source snapshot, then runs the
// engine over all rows of the kind and prints the summary.
func (app *App) reconcile(ms *store.MappingStore, cfg recon.Config) error {
	src, err := app.Store.Snapshots.ListSource(ms.Kind())
	if err != nil {
		return err
	}
	for _, e := range src {
		if err := ms.Upsert(e.Key, e.Name, e.Payload); err != nil {
			return err
		}
	}

	rows, err := ms.List()
	if err != nil {
		return err
	}

	cfg.Kind = ms.Kind()
	cfg.Logger = app.Logger
	cfg.Save = func(row *domain.MappingRow) error {
		return ms.Save(row, "mapping.reconciled")
	}

	sum, err := recon.Reconcile(rows, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, sum.Format())
	return nil
}

// runPush loads the ready rows of a kind, builds their actions, and hands
// them to the push executor.
func (app *App) runPush(
	ctx context.Context,
	ms *store.MappingStore,
	ready, success, failure domain.MigrationStatus,
	probe func(ctx context.Context) error,
	build func(row *domain.MappingRow) (plan string, exec func(ctx context.Context) (int64, error), err error),
) error {
	rows, err := ms.ListByStatus(ready)
	if err != nil {
		return err
	}

	actions := make([]push.Action, 0, len(rows))
	for _, row := range rows {
		plan, exec, err := build(row)
		if err != nil {
			return fmt.Errorf("invalid %s mapping %q: %w", ms.Kind(), row.SourceKey, err)
		}
		actions = append(actions, push.Action{Row: row, Plan: plan, Execute: exec})
	}

	executor := &push.Executor{
		Kind:          ms.Kind(),
		SuccessStatus: success,
		FailureStatus: failure,
		Probe:         probe,
		Save: func(row *domain.MappingRow) error {
			eventType := "mapping.pushed"
			if row.Status == failure {
				eventType = "mapping.push_failed"
			}
			return ms.Save(row, eventType)
		},
		Out:    app.Out,
		Logger: app.Logger,
	}

	_, err = executor.Run(ctx, app.Push, actions)
	return err
}

// extendedProbe gates push phases that require the extended API plugin.
func (app *App) extendedProbe(ctx context.Context) error {
	if !app.Config.ExtendedAPI {
		return fmt.Errorf("extended API is disabled in configuration (set extended_api: true)")
	}
	return app.Redmine.ProbeExtended(ctx)
}

// dependencyOn builds a dependency check against another kind's status
// index. key extracts the referenced mapping's source key from the
// dependent row.
func dependencyOn(
	kind string,
	await domain.MigrationStatus,
	statuses map[string]domain.MigrationStatus,
	key func(row *domain.MappingRow) string,
) recon.Dependency {
	return recon.Dependency{
		Kind:        kind,
		AwaitStatus: await,
		Resolve: func(row *domain.MappingRow) recon.DepResult {
			k := key(row)
			status, ok := statuses[k]
			if !ok {
				return recon.DepResult{State: recon.DepMissing, Key: k}
			}
			if !status.Resolved() {
				return recon.DepResult{State: recon.DepNotReady, Key: k, Status: status}
			}
			return recon.DepResult{State: recon.DepSatisfied}
		},
	}
}
