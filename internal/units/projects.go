package units

import (
	"context"
	"fmt"

	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/recon"
	"github.com/lherron/jiramine/internal/slug"
	"github.com/lherron/jiramine/internal/store"
)

func (app *App) projectPhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira projects", Run: app.extractJiraProjects},
		{Name: "redmine", Description: "Snapshot Redmine projects", Run: app.extractRedmineProjects},
		{Name: "transform", Description: "Reconcile project mappings", Run: app.reconcileProjects},
		{Name: "push", Description: "Create proposed projects in Redmine", Run: app.pushProjects},
	}
}

func (app *App) extractJiraProjects(ctx context.Context) error {
	projects, err := app.Jira.ListProjects(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.SourceEntry, 0, len(projects))
	for _, p := range projects {
		payload, err := jsonPayload(domain.ProjectSource{JiraID: p.ID, Description: p.Description})
		if err != nil {
			return err
		}
		entries = append(entries, store.SourceEntry{Key: p.Key, Name: p.Name, Payload: payload})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindProject, entries)
}

func (app *App) extractRedmineProjects(ctx context.Context) error {
	projects, err := app.Redmine.ListProjects(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.TargetEntry, 0, len(projects))
	for _, p := range projects {
		payload, err := jsonPayload(domain.ProjectProposal{Identifier: p.Identifier})
		if err != nil {
			return err
		}
		entries = append(entries, store.TargetEntry{ID: p.ID, Name: p.Name, Payload: payload})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindProject, entries)
}

func (app *App) reconcileProjects(ctx context.Context) error {
	index, err := app.targetIndex(domain.KindProject)
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Projects, recon.Config{
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

			var src domain.ProjectSource
			if err := row.GetSourcePayload(&src); err != nil {
				return err
			}
			identifier, err := slug.Identifier(row.SourceKey)
			if err != nil {
				return &recon.ManualError{Reason: fmt.Sprintf("cannot derive a project identifier from %q: %v", row.SourceKey, err)}
			}
			prop := domain.ProjectProposal{Identifier: identifier}
			if src.Description != "" {
				prop.Description = &src.Description
			}
			return row.SetProposedPayload(prop)
		},
	})
}

func (app *App) pushProjects(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Projects,
		domain.StatusReadyForCreation, domain.StatusCreationSuccess, domain.StatusCreationFailed,
		nil,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			if row.ProposedName == nil {
				return "", nil, fmt.Errorf("no proposed name")
			}
			var prop domain.ProjectProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return "", nil, err
			}

			name := *row.ProposedName
			description := ""
			if prop.Description != nil {
				description = *prop.Description
			}
			plan := fmt.Sprintf("create project %q (identifier %s)", name, prop.Identifier)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateProject(ctx, name, prop.Identifier, description)
			}
			return plan, exec, nil
		})
}
