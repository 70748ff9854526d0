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

func (app *App) membershipPhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Snapshot Jira project role assignments", Run: app.extractJiraMemberships},
		{Name: "redmine", Description: "Snapshot Redmine group memberships", Run: app.extractRedmineMemberships},
		{Name: "transform", Description: "Reconcile membership mappings", Run: app.reconcileMemberships},
		{Name: "push", Description: "Record proposed memberships in Redmine", Run: app.pushMemberships},
	}
}

// membershipSourceKey identifies one (project, role, group) assignment. Role
// is keyed by its Jira id, matching the role mapping's source key.
func membershipSourceKey(projectKey string, roleID int64, groupName string) string {
	return fmt.Sprintf("%s/%d/%s", projectKey, roleID, groupName)
}

func (app *App) extractJiraMemberships(ctx context.Context) error {
	projects, err := app.Jira.ListProjects(ctx)
	if err != nil {
		return err
	}
	roles, err := app.Jira.ListRoles(ctx)
	if err != nil {
		return err
	}

	var entries []store.SourceEntry
	for _, p := range projects {
		for _, r := range roles {
			groups, err := app.Jira.ListGroupRoleActors(ctx, p.Key, r.ID)
			if err != nil {
				return fmt.Errorf("role actors for %s/%s: %w", p.Key, r.Name, err)
			}
			for _, group := range groups {
				payload, err := jsonPayload(domain.MembershipSource{
					ProjectKey: p.Key,
					RoleID:     fmt.Sprintf("%d", r.ID),
					RoleName:   r.Name,
					GroupName:  group,
				})
				if err != nil {
					return err
				}
				entries = append(entries, store.SourceEntry{
					Key:     membershipSourceKey(p.Key, r.ID, group),
					Name:    fmt.Sprintf("%s: %s as %s", p.Key, group, r.Name),
					Payload: payload,
				})
			}
		}
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindMembership, entries)
}

func (app *App) extractRedmineMemberships(ctx context.Context) error {
	projects, err := app.Redmine.ListProjects(ctx)
	if err != nil {
		return err
	}

	var entries []store.TargetEntry
	for _, p := range projects {
		memberships, err := app.Redmine.ListMemberships(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("memberships of project %d: %w", p.ID, err)
		}
		for _, m := range memberships {
			// User-based memberships are out of scope; only group
			// assignments are migrated.
			if m.Group == nil {
				continue
			}
			target := domain.MembershipTarget{ProjectID: p.ID, GroupID: m.Group.ID}
			for _, role := range m.Roles {
				target.RoleIDs = append(target.RoleIDs, role.ID)
			}
			payload, err := jsonPayload(target)
			if err != nil {
				return err
			}
			entries = append(entries, store.TargetEntry{
				ID:      m.ID,
				Name:    fmt.Sprintf("%s: %s", p.Identifier, m.Group.Name),
				Payload: payload,
			})
		}
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindMembership, entries)
}

func (app *App) reconcileMemberships(ctx context.Context) error {
	projectStatuses, err := app.Store.Projects.StatusIndex()
	if err != nil {
		return err
	}
	groupStatuses, err := app.Store.Groups.StatusIndex()
	if err != nil {
		return err
	}
	roleStatuses, err := app.Store.Roles.StatusIndex()
	if err != nil {
		return err
	}
	projectTargets, err := app.Store.Projects.ResolvedTargets()
	if err != nil {
		return err
	}
	groupTargets, err := app.Store.Groups.ResolvedTargets()
	if err != nil {
		return err
	}
	roleTargets, err := app.Store.Roles.ResolvedTargets()
	if err != nil {
		return err
	}
	existing, err := app.existingMemberships()
	if err != nil {
		return err
	}

	sourceField := func(row *domain.MappingRow, get func(src domain.MembershipSource) string) string {
		var src domain.MembershipSource
		if err := row.GetSourcePayload(&src); err != nil {
			return ""
		}
		return get(src)
	}

	return app.reconcile(app.Store.Memberships, recon.Config{
		Allowed: []domain.MigrationStatus{
			domain.StatusPendingAnalysis,
			domain.StatusReadyForAssignment,
			domain.StatusManualIntervention,
			domain.StatusAwaitingProject,
			domain.StatusAwaitingGroup,
			domain.StatusAwaitingRole,
		},
		ReadyStatus:    domain.StatusReadyForAssignment,
		RecordedStatus: domain.StatusAssignmentRecorded,
		Dependencies: []recon.Dependency{
			dependencyOn("project", domain.StatusAwaitingProject, projectStatuses, func(row *domain.MappingRow) string {
				return sourceField(row, func(src domain.MembershipSource) string { return src.ProjectKey })
			}),
			dependencyOn("group", domain.StatusAwaitingGroup, groupStatuses, func(row *domain.MappingRow) string {
				return sourceField(row, func(src domain.MembershipSource) string { return src.GroupName })
			}),
			dependencyOn("role", domain.StatusAwaitingRole, roleStatuses, func(row *domain.MappingRow) string {
				return sourceField(row, func(src domain.MembershipSource) string { return src.RoleID })
			}),
		},
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			var src domain.MembershipSource
			if err := row.GetSourcePayload(&src); err != nil {
				return err
			}
			projectID, ok := projectTargets[src.ProjectKey]
			if !ok {
				return &recon.ManualError{Reason: fmt.Sprintf("project mapping %q resolved without a target id", src.ProjectKey)}
			}
			groupID, ok := groupTargets[src.GroupName]
			if !ok {
				return &recon.ManualError{Reason: fmt.Sprintf("group mapping %q resolved without a target id", src.GroupName)}
			}
			roleID, ok := roleTargets[src.RoleID]
			if !ok {
				return &recon.ManualError{Reason: fmt.Sprintf("role mapping %q resolved without a target id", src.RoleID)}
			}
			return row.SetProposedPayload(domain.MembershipProposal{
				ProjectID: projectID,
				GroupID:   groupID,
				RoleID:    roleID,
			})
		},
		AlreadyRecorded: func(row *domain.MappingRow) (int64, bool) {
			var prop domain.MembershipProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return 0, false
			}
			id, ok := existing[fmt.Sprintf("%d/%d/%d", prop.ProjectID, prop.GroupID, prop.RoleID)]
			return id, ok
		},
	})
}

// existingMemberships indexes the target snapshot by (project, group, role)
// id triple, one entry per role of a membership row.
func (app *App) existingMemberships() (map[string]int64, error) {
	entries, err := app.Store.Snapshots.ListTarget(domain.KindMembership)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]int64)
	for _, e := range entries {
		if e.Payload == nil {
			continue
		}
		var target domain.MembershipTarget
		if err := jsonDecode(*e.Payload, &target); err != nil {
			return nil, fmt.Errorf("bad membership snapshot %d: %w", e.ID, err)
		}
		for _, roleID := range target.RoleIDs {
			existing[fmt.Sprintf("%d/%d/%d", target.ProjectID, target.GroupID, roleID)] = e.ID
		}
	}
	return existing, nil
}

func (app *App) pushMemberships(ctx context.Context) error {
	return app.runPush(ctx, app.Store.Memberships,
		domain.StatusReadyForAssignment, domain.StatusAssignmentRecorded, domain.StatusCreationFailed,
		nil,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			var prop domain.MembershipProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return "", nil, err
			}
			if prop.ProjectID == 0 || prop.GroupID == 0 || prop.RoleID == 0 {
				return "", nil, fmt.Errorf("incomplete membership proposal")
			}
			plan := fmt.Sprintf("assign group %d role %d on project %d (%s)",
				prop.GroupID, prop.RoleID, prop.ProjectID, row.SourceName)
			exec := func(ctx context.Context) (int64, error) {
				return app.Redmine.CreateMembership(ctx, prop.ProjectID, prop.GroupID, prop.RoleID)
			}
			return plan, exec, nil
		})
}
