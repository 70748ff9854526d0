package redmine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lherron/jiramine/internal/domain"
)

// ExtendedMarkerHeader must be present on responses from the extended API
// plugin. Push phases that need the plugin probe for it before mutating
// anything.
const ExtendedMarkerHeader = "X-Redmine-Extended"

// ProbeExtended performs a lightweight request against the extended API
// plugin and requires the marker response header. An error here fails the
// whole push phase up front.
func (c *Client) ProbeExtended(ctx context.Context) error {
	if c.extPrefix == "" {
		return fmt.Errorf("redmine: extended API is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.extPrefix+"/version", nil)
	if err != nil {
		return fmt.Errorf("redmine: failed to build probe request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("redmine: extended API probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("redmine: extended API probe returned HTTP %d", resp.StatusCode)
	}
	if resp.Header.Get(ExtendedMarkerHeader) == "" {
		return fmt.Errorf("redmine: extended API marker header %s missing; is the plugin installed?", ExtendedMarkerHeader)
	}
	return nil
}

// CreateTracker creates a tracker through the extended API and returns its
// id. The core Redmine REST API has no tracker-creation endpoint.
func (c *Client) CreateTracker(ctx context.Context, name, description string, defaultStatusID int64) (int64, error) {
	body := map[string]interface{}{
		"tracker": map[string]interface{}{
			"name":              name,
			"description":       description,
			"default_status_id": defaultStatusID,
		},
	}
	var out struct {
		Tracker struct {
			ID int64 `json:"id"`
		} `json:"tracker"`
	}
	if err := c.do(ctx, http.MethodPost, c.extPrefix+"/trackers.json", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Tracker.ID, nil
}

// CreateRole creates a role through the extended API and returns its id.
func (c *Client) CreateRole(ctx context.Context, name string) (int64, error) {
	body := map[string]interface{}{
		"role": map[string]interface{}{"name": name},
	}
	var out struct {
		Role struct {
			ID int64 `json:"id"`
		} `json:"role"`
	}
	if err := c.do(ctx, http.MethodPost, c.extPrefix+"/roles.json", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Role.ID, nil
}

// ListChecklistItems returns the checklist items attached to an issue
// through the extended API.
func (c *Client) ListChecklistItems(ctx context.Context, issueID int64) ([]domain.ChecklistItem, error) {
	var out struct {
		Checklists []struct {
			Subject string `json:"subject"`
			IsDone  bool   `json:"is_done"`
		} `json:"checklists"`
	}
	path := fmt.Sprintf("%s/issues/%d/checklists.json", c.extPrefix, issueID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}

	items := make([]domain.ChecklistItem, 0, len(out.Checklists))
	for _, cl := range out.Checklists {
		items = append(items, domain.ChecklistItem{Subject: cl.Subject, Done: cl.IsDone})
	}
	return items, nil
}

// ReplaceChecklist clears the issue's checklist and recreates it from the
// given items. The association endpoints are idempotent enough for clear
// and recreate to be safe.
func (c *Client) ReplaceChecklist(ctx context.Context, issueID int64, items []domain.ChecklistItem) error {
	path := fmt.Sprintf("%s/issues/%d/checklists.json", c.extPrefix, issueID)

	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to clear checklist on issue %d: %w", issueID, err)
	}

	for i, item := range items {
		body := map[string]interface{}{
			"checklist": map[string]interface{}{
				"subject":  item.Subject,
				"is_done":  item.Done,
				"position": i + 1,
			},
		}
		if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
			return fmt.Errorf("failed to create checklist item %d on issue %d: %w", i+1, issueID, err)
		}
	}
	return nil
}
