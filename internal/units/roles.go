package units

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/recon"
	"github.com/lherron/jiramine/internal/store"
)

func (app *App) rolePhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira project roles", Run: app.extractJiraRoles},
		{Name: "redmine", Description: "Snapshot Redmine roles", Run: app.extractRedmineRoles},
		{Name: "transform", Description: "Reconcile role mappings", Run: app.reconcileRoles},
		{Name: "push", Description: "Create proposed roles via the extended API", Run: app.pushRoles},
	}
}

func (app *App) extractJiraRoles(ctx context.Context) error {
	roles, err := app.Jira.ListRoles(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.SourceEntry, 0, len(roles))
	for _, r := range roles {
		payload, err := jsonPayload(domain.RoleSource{Description: r.Description})
		if err != nil {
			return err
		}
		entries = append(entries, store.SourceEntry{
			Key:     strconv.FormatInt(r.ID, 10),
			Name:    r.Name,
			Payload: payload,
		})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindRole, entries)
}

func (app *App) extractRedmineRoles(ctx context.Context) error {
	roles, err := app.Redmine.ListRoles(ctx)
	if err != nil {
		return err
	}

	entries := make([]store.TargetEntry, 0, len(roles))
	for _, r := range roles {
		entries = append(entries, store.TargetEntry{ID: r.ID, Name: r.Name})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindRole, entries)
}

func (app *App) reconcileRoles(ctx context.Context) error {
	index, err := app.targetIndex(domain.KindRole)
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Roles, recon.Config{
		Allowed:     creationAllowed,
		ReadyStatus: domain.StatusReadyForCreation,
		Match:       index,
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			return nil
		},
	})
}

func (app *App) pushRoles(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Roles,
		domain.StatusReadyForCreation, domain.StatusCreationSuccess, domain.StatusCreationFailed,
		app.extendedProbe,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			if row.ProposedName == nil {
				return "", nil, fmt.Errorf("no proposed name")
			}
			name := *row.ProposedName
			plan := fmt.Sprintf("create role %q", name)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateRole(ctx, name)
			}
			return plan, exec, nil
		})
}
