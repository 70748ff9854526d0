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

func (app *App) groupPhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira groups", Run: app.extractJiraGroups},
		{Name: "redmine", Description: "Snapshot Redmine groups", Run: app.extractRedmineGroups},
		{Name: "transform", Description: "Reconcile group mappings", Run: app.reconcileGroups},
		{Name: "push", Description: "Create proposed groups in Redmine", Run: app.pushGroups},
	}
}

func (app *App) extractJiraGroups(ctx context.Context) error {
	groups, err := app.Jira.ListGroups(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.SourceEntry, 0, len(groups))
	for _, g := range groups {
		payload, err := jsonPayload(domain.GroupSource{GroupID: g.GroupID})
		if err != nil {
			return err
		}
		// Group names are the natural key on both sides.
		entries = append(entries, store.SourceEntry{Key: g.Name, Name: g.Name, Payload: payload})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindGroup, entries)
}

func (app *App) extractRedmineGroups(ctx context.Context) error {
	groups, err := app.Redmine.ListGroups(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.TargetEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, store.TargetEntry{ID: g.ID, Name: g.Name})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindGroup, entries)
}

func (app *App) reconcileGroups(ctx context.Context) error {
	index, err := app.targetIndex(domain.KindGroup)
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Groups, recon.Config{
		Allowed:     creationAllowed,
		ReadyStatus: domain.StatusReadyForCreation,
		Match:       index,
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			// Nothing beyond the proposed name is needed for a group.
			return nil
		},
	})
}

func (app *App) pushGroups(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Groups,
		domain.StatusReadyForCreation, domain.StatusCreationSuccess, domain.StatusCreationFailed,
		nil,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			if row.ProposedName == nil {
				return "", nil, fmt.Errorf("no proposed name")
			}
			name := *row.ProposedName
			plan := fmt.Sprintf("create group %q", name)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateGroup(ctx, name)
			}
			return plan, exec, nil
		})
}
