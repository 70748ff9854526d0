// Package jira is a read-only client for the Jira Cloud REST API. It serves
// the extraction phases: paged listing endpoints whose results are stored
// as source snapshots. All calls are blocking with a fixed timeout; a
// failed listing call is fatal to the extraction phase.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const pageSize = 50

// Client talks to a Jira instance using basic auth (email + API token).
type Client struct {
	baseURL string
	user    string
	token   string
	http    *http.Client
}

// NewClient creates a Jira client with a fixed request timeout.
func NewClient(baseURL, user, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("jira: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("jira: HTTP %d: %s", e.StatusCode, body)
}

// IssueType is one Jira issue type (migrated to a Redmine tracker).
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subtask     bool   `json:"subtask"`
}

// Project is one Jira project.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Group is one Jira group.
type Group struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

// Role is one Jira project role.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Issue is one Jira issue with the fields the migration needs.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Project     struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"fields"`
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var me struct {
		AccountID string `json:"accountId"`
	}
	return c.get(ctx, "/rest/api/2/myself", nil, &me)
}

// ListIssueTypes returns all issue types. The endpoint is not paged.
func (c *Client) ListIssueTypes(ctx context.Context) ([]IssueType, error) {
	var types []IssueType
	if err := c.get(ctx, "/rest/api/2/issuetype", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// ListProjects returns all projects, following pagination.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var all []Project
	for startAt := 0; ; {
		var page struct {
			Values []Project `json:"values"`
			IsLast bool      `json:"isLast"`
		}
		q := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		if err := c.get(ctx, "/rest/api/2/project/search", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return all, nil
		}
		startAt += len(page.Values)
	}
}

// ListGroups returns all groups, following pagination.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var all []Group
	for startAt := 0; ; {
		var page struct {
			Values []Group `json:"values"`
			IsLast bool    `json:"isLast"`
		}
		q := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		if err := c.get(ctx, "/rest/api/2/group/bulk", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return all, nil
		}
		startAt += len(page.Values)
	}
}

// ListRoles returns all project roles. The endpoint is not paged.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.get(ctx, "/rest/api/2/role", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ListGroupRoleActors returns the names of the groups assigned to a role in
// a project.
func (c *Client) ListGroupRoleActors(ctx context.Context, projectKey string, roleID int64) ([]string, error) {
	var role struct {
		Actors []struct {
			Type       string `json:"type"`
			ActorGroup struct {
				Name string `json:"name"`
			} `json:"actorGroup"`
		} `json:"actors"`
	}
	path := fmt.Sprintf("/rest/api/2/project/%s/role/%d", url.PathEscape(projectKey), roleID)
	if err := c.get(ctx, path, nil, &role); err != nil {
		return nil, err
	}

	var groups []string
	for _, actor := range role.Actors {
		if actor.Type == "atlassian-group-role-actor" {
			groups = append(groups, actor.ActorGroup.Name)
		}
	}
	return groups, nil
}

// SearchIssues returns all issues matching a JQL query, following
// pagination.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	var all []Issue
	for startAt := 0; ; {
		var page struct {
			Issues []Issue `json:"issues"`
			Total  int     `json:"total"`
		}
		q := url.Values{
			"jql":        {jql},
			"fields":     {"summary,description,project"},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		if err := c.get(ctx, "/rest/api/2/search", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Issues...)
		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("jira: failed to build request: %w", err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira: request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("jira: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("jira: failed to decode %s response: %w", path, err)
	}
	return nil
}
