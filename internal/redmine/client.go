// Package redmine is a client for the Redmine REST API plus the extended
// API plugin used for tracker/role creation and checklist rewriting. List
// calls feed the target snapshots; create calls are issued only by the push
// executor.
package redmine

import (
	"bytes"
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

const pageLimit = 100

// Client talks to a Redmine instance using API-key auth.
type Client struct {
	baseURL   string
	apiKey    string
	extPrefix string
	http      *http.Client
}

// NewClient creates a Redmine client with a fixed request timeout.
// extPrefix is the path prefix of the extended API plugin (empty disables
// extended calls).
func NewClient(baseURL, apiKey, extPrefix string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		extPrefix: extPrefix,
		http:      &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from Redmine. The error summary carries
// the HTTP status and, when the body is a standard Redmine error document,
// its error messages.
type APIError struct {
	StatusCode int
	Errors     []string
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("redmine: HTTP %d: %s", e.StatusCode, strings.Join(e.Errors, "; "))
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("redmine: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("redmine: HTTP %d: %s", e.StatusCode, body)
}

// Tracker is one Redmine tracker.
type Tracker struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DefaultStatus struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"default_status"`
}

// Role is one Redmine role.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is one Redmine project.
type Project struct {
	ID          int64  `json:"id"`
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Group is one Redmine group.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Membership is one project membership (user or group based).
type Membership struct {
	ID    int64 `json:"id"`
	Group *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"group"`
	Roles []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"roles"`
}

// Issue is one Redmine issue with the fields the migration needs.
type Issue struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Project struct {
		ID int64 `json:"id"`
	} `json:"project"`
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	return c.do(ctx, http.MethodGet, "/users/current.json", nil, nil, &out)
}

// ListTrackers returns all trackers.
func (c *Client) ListTrackers(ctx context.Context) ([]Tracker, error) {
	var out struct {
		Trackers []Tracker `json:"trackers"`
	}
	if err := c.do(ctx, http.MethodGet, "/trackers.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Trackers, nil
}

// ListRoles returns all roles.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var out struct {
		Roles []Role `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/roles.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// ListProjects returns all projects, following offset pagination.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var all []Project
	for offset := 0; ; {
		var page struct {
			Projects   []Project `json:"projects"`
			TotalCount int       `json:"total_count"`
		}
		if err := c.do(ctx, http.MethodGet, "/projects.json", pageQuery(offset), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Projects...)
		offset += len(page.Projects)
		if offset >= page.TotalCount || len(page.Projects) == 0 {
			return all, nil
		}
	}
}

// ListGroups returns all groups.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var out struct {
		Groups []Group `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// ListMemberships returns all memberships of a project, following offset
// pagination.
func (c *Client) ListMemberships(ctx context.Context, projectID int64) ([]Membership, error) {
	var all []Membership
	path := fmt.Sprintf("/projects/%d/memberships.json", projectID)
	for offset := 0; ; {
		var page struct {
			Memberships []Membership `json:"memberships"`
			TotalCount  int          `json:"total_count"`
		}
		if err := c.do(ctx, http.MethodGet, path, pageQuery(offset), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Memberships...)
		offset += len(page.Memberships)
		if offset >= page.TotalCount || len(page.Memberships) == 0 {
			return all, nil
		}
	}
}

// ListIssues returns all issues, following offset pagination.
func (c *Client) ListIssues(ctx context.Context) ([]Issue, error) {
	var all []Issue
	for offset := 0; ; {
		var page struct {
			Issues     []Issue `json:"issues"`
			TotalCount int     `json:"total_count"`
		}
		q := pageQuery(offset)
		q.Set("status_id", "*")
		if err := c.do(ctx, http.MethodGet, "/issues.json", q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Issues...)
		offset += len(page.Issues)
		if offset >= page.TotalCount || len(page.Issues) == 0 {
			return all, nil
		}
	}
}

// CreateProject creates a project and returns its id.
func (c *Client) CreateProject(ctx context.Context, name, identifier, description string) (int64, error) {
	body := map[string]interface{}{
		"project": map[string]interface{}{
			"name":        name,
			"identifier":  identifier,
			"description": description,
		},
	}
	var out struct {
		Project struct {
			ID int64 `json:"id"`
		} `json:"project"`
	}
	if err := c.do(ctx, http.MethodPost, "/projects.json", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Project.ID, nil
}

// CreateGroup creates a group and returns its id.
func (c *Client) CreateGroup(ctx context.Context, name string) (int64, error) {
	body := map[string]interface{}{
		"group": map[string]interface{}{"name": name},
	}
	var out struct {
		Group struct {
			ID int64 `json:"id"`
		} `json:"group"`
	}
	if err := c.do(ctx, http.MethodPost, "/groups.json", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Group.ID, nil
}

// CreateMembership records a group membership on a project and returns the
// membership id. Redmine accepts a group id in the user_id field.
func (c *Client) CreateMembership(ctx context.Context, projectID, groupID, roleID int64) (int64, error) {
	body := map[string]interface{}{
		"membership": map[string]interface{}{
			"user_id":  groupID,
			"role_ids": []int64{roleID},
		},
	}
	var out struct {
		Membership struct {
			ID int64 `json:"id"`
		} `json:"membership"`
	}
	path := fmt.Sprintf("/projects/%d/memberships.json", projectID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return 0, err
	}
	return out.Membership.ID, nil
}

// CreateIssue creates an issue and returns its id.
func (c *Client) CreateIssue(ctx context.Context, projectID int64, subject, description string) (int64, error) {
	body := map[string]interface{}{
		"issue": map[string]interface{}{
			"project_id":  projectID,
			"subject":     subject,
			"description": description,
		},
	}
	var out struct {
		Issue struct {
			ID int64 `json:"id"`
		} `json:"issue"`
	}
	if err := c.do(ctx, http.MethodPost, "/issues.json", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Issue.ID, nil
}

func pageQuery(offset int) url.Values {
	return url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(pageLimit)},
	}
}

// do performs one API call. A non-2xx response becomes an *APIError with
// the parsed Redmine error messages when present.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, v interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("redmine: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("redmine: failed to build request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("redmine: request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("redmine: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var parsed struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			apiErr.Errors = parsed.Errors
		}
		return apiErr
	}

	if v != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, v); err != nil {
			return fmt.Errorf("redmine: failed to decode %s response: %w", path, err)
		}
	}
	return nil
}
