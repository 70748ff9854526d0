package units

import (
	"context"
	"fmt"

	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/recon"
	"github.com/lherron/jiramine/internal/store"
)

func (app *App) trackerPhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira issue types", Run: app.extractJiraTrackers},
		{Name: "redmine", Description: "Snapshot Redmine trackers", Run: app.extractRedmineTrackers},
		{Name: "transform", Description: "Reconcile tracker mappings", Run: app.reconcileTrackers},
		{Name: "push", Description: "Create proposed trackers via the extended API", Run: app.pushTrackers},
	}
}

func (app *App) extractJiraTrackers(ctx context.Context) error {
	types, err := app.Jira.ListIssueTypes(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.SourceEntry, 0, len(types))
	for _, t := range types {
		payload, err := jsonPayload(domain.TrackerSource{Description: t.Description, Subtask: t.Subtask})
		if err != nil {
			return err
		}
		entries = append(entries, store.SourceEntry{Key: t.ID, Name: t.Name, Payload: payload})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindTracker, entries)
}

func (app *App) extractRedmineTrackers(ctx context.Context) error {
	trackers, err := app.Redmine.ListTrackers(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.TargetEntry, 0, len(trackers))
	for _, t := range trackers {
		statusID := t.DefaultStatus.ID
		payload, err := jsonPayload(domain.TrackerProposal{DefaultStatusID: &statusID})
		if err != nil {
			return err
		}
		entries = append(entries, store.TargetEntry{ID: t.ID, Name: t.Name, Payload: payload})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindTracker, entries)
}

func (app *App) reconcileTrackers(ctx context.Context) error {
	index, err := app.targetIndex(domain.KindTracker)
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Trackers, recon.Config{
		Allowed:     creationAllowed,
		ReadyStatus: domain.StatusReadyForCreation,
		Match:       index,
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			if matched != nil {
				if matched.Payload != "" {
					row.ProposedPayload = &matched.Payload
				}
				return nil
			}

			// A new tracker cannot be created without a default status;
			// without a configured fallback this needs a human decision.
			if app.Config.DefaultIssueStatusID == 0 {
				return &recon.ManualError{Reason: "no default issue status configured for proposed tracker (set default_issue_status_id)"}
			}

			var src domain.TrackerSource
			if err := row.GetSourcePayload(&src); err != nil {
				return err
			}
			statusID := app.Config.DefaultIssueStatusID
			prop := domain.TrackerProposal{DefaultStatusID: &statusID}
			if src.Description != "" {
				prop.Description = &src.Description
			}
			return row.SetProposedPayload(prop)
		},
	})
}

func (app *App) pushTrackers(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Trackers,
		domain.StatusReadyForCreation, domain.StatusCreationSuccess, domain.StatusCreationFailed,
		app.extendedProbe,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			if row.ProposedName == nil {
				return "", nil, fmt.Errorf("no proposed name")
			}
			var prop domain.TrackerProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return "", nil, err
			}
			if prop.DefaultStatusID == nil {
				return "", nil, fmt.Errorf("no default status in proposal")
			}

			name := *row.ProposedName
			description := ""
			if prop.Description != nil {
				description = *prop.Description
			}
			statusID := *prop.DefaultStatusID
			plan := fmt.Sprintf("create tracker %q (default status %d)", name, statusID)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateTracker(ctx, name, description, statusID)
			}
			return plan, exec, nil
		})
}
