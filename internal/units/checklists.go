package units

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/match"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/recon"
	"github.com/lherron/jiramine/internal/store"
	"github.com/pmezard/go-difflib/difflib"
)

func (app *App) checklistPhases() []phase.Phase {
	return []phase.Phase{
		{Name: "jira", Description: "Extract checklist items from Jira issue descriptions", Run: app.extractJiraChecklists},
		{Name: "redmine", Description: "Snapshot Redmine issue checklists", Run: app.extractRedmineChecklists},
		{Name: "transform", Description: "Reconcile checklist mappings", Run: app.reconcileChecklists},
		{Name: "push", Description: "Rewrite issue checklists via the extended API", Run: app.pushChecklists},
	}
}

// checklistLine matches one markdown task-list entry in an issue description.
var checklistLine = regexp.MustCompile(`^[-*] \[([ xX])\] (.+)$`)

// ParseChecklist extracts the markdown task-list items from an issue
// description. Lines that are not task-list entries are ignored.
func ParseChecklist(description string) []domain.ChecklistItem {
	var items []domain.ChecklistItem
	for _, line := range strings.Split(description, "\n") {
		m := checklistLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		items = append(items, domain.ChecklistItem{
			Subject: strings.TrimSpace(m[2]),
			Done:    m[1] != " ",
		})
	}
	return items
}

func (app *App) extractJiraChecklists(ctx context.Context) error {
	issues, err := app.Jira.SearchIssues(ctx, app.Config.JiraIssueJQL)
	if err != nil {
		return err
	}

	var entries []store.SourceEntry
	for _, issue := range issues {
		items := ParseChecklist(issue.Fields.Description)
		if len(items) == 0 {
			continue
		}
		payload, err := jsonPayload(domain.ChecklistSource{Items: items})
		if err != nil {
			return err
		}
		entries = append(entries, store.SourceEntry{
			Key:     issue.Key,
			Name:    fmt.Sprintf("%s checklist (%d items)", issue.Key, len(items)),
			Payload: payload,
		})
	}
	return app.Store.Snapshots.ReplaceSource(domain.KindChecklist, entries)
}

func (app *App) extractRedmineChecklists(ctx context.Context) error {
	if !app.Config.ExtendedAPI {
		return fmt.Errorf("checklist extraction needs the extended API (set extended_api: true)")
	}

	// Only issues with a resolved mapping can carry a migrated checklist,
	// so those are the only target checklists worth snapshotting.
	issueTargets, err := app.Store.Issues.ResolvedTargets()
	if err != nil {
		return err
	}

	var entries []store.TargetEntry
	for _, issueID := range issueTargets {
		items, err := app.Redmine.ListChecklistItems(ctx, issueID)
		if err != nil {
			return fmt.Errorf("checklist of issue %d: %w", issueID, err)
		}
		if len(items) == 0 {
			continue
		}
		payload, err := jsonPayload(domain.ChecklistSource{Items: items})
		if err != nil {
			return err
		}
		entries = append(entries, store.TargetEntry{
			ID:      issueID,
			Name:    fmt.Sprintf("issue %d checklist (%d items)", issueID, len(items)),
			Payload: payload,
		})
	}
	return app.Store.Snapshots.ReplaceTarget(domain.KindChecklist, entries)
}

func (app *App) reconcileChecklists(ctx context.Context) error {
	issueStatuses, err := app.Store.Issues.StatusIndex()
	if err != nil {
		return err
	}
	issueTargets, err := app.Store.Issues.ResolvedTargets()
	if err != nil {
		return err
	}
	existing, err := app.existingChecklists()
	if err != nil {
		return err
	}

	return app.reconcile(app.Store.Checklists, recon.Config{
		Allowed: []domain.MigrationStatus{
			domain.StatusPendingAnalysis,
			domain.StatusReadyForCreation,
			domain.StatusManualIntervention,
			domain.StatusAwaitingIssue,
		},
		ReadyStatus:    domain.StatusReadyForCreation,
		RecordedStatus: domain.StatusAssignmentRecorded,
		Dependencies: []recon.Dependency{
			// The source key of a checklist mapping is the issue key it
			// was parsed from.
			dependencyOn("issue", domain.StatusAwaitingIssue, issueStatuses, func(row *domain.MappingRow) string {
				return row.SourceKey
			}),
		},
		Propose: func(row *domain.MappingRow, matched *match.Candidate) error {
			var src domain.ChecklistSource
			if err := row.GetSourcePayload(&src); err != nil {
				return err
			}
			issueID, ok := issueTargets[row.SourceKey]
			if !ok {
				return &recon.ManualError{Reason: fmt.Sprintf("issue mapping %q resolved without a target id", row.SourceKey)}
			}
			return row.SetProposedPayload(domain.ChecklistProposal{IssueID: issueID, Items: src.Items})
		},
		AlreadyRecorded: func(row *domain.MappingRow) (int64, bool) {
			var prop domain.ChecklistProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return 0, false
			}
			items, ok := existing[prop.IssueID]
			if !ok || !checklistsEqual(items, prop.Items) {
				return 0, false
			}
			return prop.IssueID, true
		},
	})
}

// existingChecklists indexes the target snapshot's items by issue id.
func (app *App) existingChecklists() (map[int64][]domain.ChecklistItem, error) {
	entries, err := app.Store.Snapshots.ListTarget(domain.KindChecklist)
	if err != nil {
		return nil, err
	}
	existing := make(map[int64][]domain.ChecklistItem, len(entries))
	for _, e := range entries {
		if e.Payload == nil {
			continue
		}
		var src domain.ChecklistSource
		if err := jsonDecode(*e.Payload, &src); err != nil {
			return nil, fmt.Errorf("bad checklist snapshot %d: %w", e.ID, err)
		}
		existing[e.ID] = src.Items
	}
	return existing, nil
}

func checklistsEqual(a, b []domain.ChecklistItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (app *App) pushChecklists(ctx context.Context) error {
	existing, err := app.existingChecklists()
	if err != nil {
		return err
	}

	return app.runPush(ctx, app.Store.Checklists,
		domain.StatusReadyForCreation, domain.StatusAssignmentRecorded, domain.StatusCreationFailed,
		app.extendedProbe,
		func(row *domain.MappingRow) (string, func(ctx context.Context) (int64, error), error) {
			var prop domain.ChecklistProposal
			if err := row.GetProposedPayload(&prop); err != nil {
				return "", nil, err
			}
			if prop.IssueID == 0 {
				return "", nil, fmt.Errorf("no target issue in proposal")
			}

			plan, err := checklistDiff(prop.IssueID, existing[prop.IssueID], prop.Items)
			if err != nil {
				return "", nil, err
			}
			exec := func(ctx context.Context) (int64, error) {
				if err := app.Redmine.ReplaceChecklist(ctx, prop.IssueID, prop.Items); err != nil {
					return 0, err
				}
				return prop.IssueID, nil
			}
			return plan, exec, nil
		})
}

// checklistDiff renders the replacement as a unified diff of the issue's
// current checklist against the proposed one.
func checklistDiff(issueID int64, current, proposed []domain.ChecklistItem) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        checklistLines(current),
		B:        checklistLines(proposed),
		FromFile: fmt.Sprintf("issue %d (current)", issueID),
		ToFile:   fmt.Sprintf("issue %d (proposed)", issueID),
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render checklist diff: %w", err)
	}
	if diff == "" {
		return fmt.Sprintf("rewrite checklist on issue %d (no visible change)", issueID), nil
	}
	return fmt.Sprintf("rewrite checklist on issue %d:\n%s", issueID, strings.TrimRight(diff, "\n")), nil
}

func checklistLines(items []domain.ChecklistItem) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		mark := " "
		if item.Done {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s\n", mark, item.Subject))
	}
	return lines
}
