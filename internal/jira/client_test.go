package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestListGroupsFollowsPagination(t *testing.T) {
	total := 120
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _, ok := r.BasicAuth(); !ok || user != "bot@example.com" {
			t.Error("expected basic auth")
		}
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		var values []map[string]interface{}
		for i := startAt; i < total && i < startAt+maxResults; i++ {
			values = append(values, map[string]interface{}{
				"groupId": fmt.Sprintf("g-%d", i),
				"name":    fmt.Sprintf("group-%d", i),
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": values,
			"isLast": startAt+maxResults >= total,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot@example.com", "token", 5*time.Second)
	groups, err := c.ListGroups(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(groups) != total {
		t.Errorf("expected %d groups, got %d", total, len(groups))
	}
}

func TestListGroupRoleActorsFiltersGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/project/PLAT/role/10002" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"actors": [
				{"type": "atlassian-group-role-actor", "actorGroup": {"name": "dev-team"}},
				{"type": "atlassian-user-role-actor"},
				{"type": "atlassian-group-role-actor", "actorGroup": {"name": "qa-team"}}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "token", 5*time.Second)
	groups, err := c.ListGroupRoleActors(context.Background(), "PLAT", 10002)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(groups) != 2 || groups[0] != "dev-team" || groups[1] != "qa-team" {
		t.Errorf("expected group actors only, got %v", groups)
	}
}

func TestAPIErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errorMessages":["Authentication failed"]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "bad-token", 5*time.Second)
	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
}
