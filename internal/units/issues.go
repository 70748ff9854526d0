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

func (app *App) issuePhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira issues", Run: app.extractJiraIssues},
		{Name: "redmine", Description: "Snapshot Redmine issues", Run: app.extractRedmineIssues},
		{Name: "transform", Description: "Reconcile issue mappings", Run: app.reconcileIssues},
		{Name: "push", Description: "Create proposed issues in Redmine", Run: app.pushIssues},
	}
}

func (app *App) extractJiraIssues(ctx context.Context) error {
	issues, err := app.Jira.SearchIssues(ctx, app.Config.JiraIssueJQL)
	if err != nil {
		return err
	}

	entries := make([]store.SourceEntry, 0, len(issues))
	for _, issue := range issues {
		payload, err := jsonPayload(domain.IssueSource{
			ProjectKey:  issue.Fields.Project.Key,
			Description: issue.Fields.Description,
		})
		if err != nil {
			return err
		}
		entries = append(entries, store.SourceEntry{
			Key:     issue.Key,
			Name:    issue.Fields.Summary,
			Payload: payload,
		})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindIssue, entries)
}

func (app *App) extractRedmineIssues(ctx context.Context) error {
	issues, err := app.Redmine.ListIssues(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.TargetEntry, 0, len(issues))
	for _, issue := range issues {
		entries = append(entries, store.TargetEntry{ID: issue.ID, Name: issue.Subject})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindIssue, entries)
}

func (app *App) reconcileIssues(ctx context.Context) error {
	index, err := app.targetIndex(domain.KindIssue)
	if err != nil {
		return err
	}
	projectStatuses, err := app.Store.Projects.StatusIndex()
	if err != nil {
		return err
	}
	projectTargets, err := app.Store.Projects.ResolvedTargets()
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Issues, recon.Config{
		Allowed:     append(creationAllowed, domain.StatusAwaitingProject),
		ReadyStatus: domain.StatusReadyForCreation,
		Match:       index,
		Dependencies: []recon.Dependency{
			dependencyOn("project", domain.StatusAwaitingProject, projectStatuses, func(row *domain.MappingRow) string {
				var src domain.IssueSource
				if err := row.GetSourcePayload(&src); err != nil {
					return ""
				}
				return src.ProjectKey
			}),
		},
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			if matched != nil {
				return nil
			}

			var src domain.IssueSource
			if err := row.GetSourcePayload(&src); err != nil {
				return err
			}
			projectID, ok := projectTargets[src.ProjectKey]
			if !ok {
				return &recon.ManualError{Reason: fmt.Sprintf("project mapping %q resolved without a target id", src.ProjectKey)}
			}
			prop := domain.IssueProposal{ProjectID: projectID}
			if src.Description != "" {
				prop.Description = &src.Description
			}
			return row.SetProposedPayload(prop)
		},
	})
}

func (app *App) pushIssues(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Issues,
		domain.StatusReadyForCreation, domain.StatusCreationSuccess, domain.StatusCreationFailed,
		nil,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			if row.ProposedName == nil {
				return "", nil, fmt.Errorf("no proposed name")
			}
			var prop domain.IssueProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return "", nil, err
			}
			if prop.ProjectID == 0 {
				return "", nil, fmt.Errorf("no target project in proposal")
			}

			subject := *row.ProposedName
			description := ""
			if prop.Description != nil {
				description = *prop.Description
			}
			plan := fmt.Sprintf("create issue %q in project %d", subject, prop.ProjectID)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateIssue(ctx, prop.ProjectID, subject, description)
			}
			return plan, exec, nil
		})
}
