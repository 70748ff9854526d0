package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestAPIErrorParsesRedmineErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":["Name has already been taken","Identifier is invalid"]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "", 5*time.Second)
	_, err := c.CreateGroup(context.Background(), "developers")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	want := "redmine: HTTP 422: Name has already been taken; Identifier is invalid"
	if apiErr.Error() != want {
		t.Errorf("got %q, want %q", apiErr.Error(), want)
	}
}

func TestListProjectsFollowsPagination(t *testing.T) {
	total := 150
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var projects []map[string]interface{}
		for i := offset; i < total && i < offset+limit; i++ {
			projects = append(projects, map[string]interface{}{
				"id":         i + 1,
				"identifier": fmt.Sprintf("p%d", i+1),
				"name":       fmt.Sprintf("Project %d", i+1),
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"projects":    projects,
			"total_count": total,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "", 5*time.Second)
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(projects) != total {
		t.Errorf("expected %d projects, got %d", total, len(projects))
	}
	if projects[0].ID != 1 || projects[total-1].ID != int64(total) {
		t.Error("unexpected project ordering across pages")
	}
}

func TestProbeExtendedRequiresMarkerHeader(t *testing.T) {
	withHeader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extended/version" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set(ExtendedMarkerHeader, "1.2.0")
		fmt.Fprint(w, `{"version":"1.2.0"}`)
	}))
	defer withHeader.Close()

	c := NewClient(withHeader.URL, "key", "/extended", 5*time.Second)
	if err := c.ProbeExtended(context.Background()); err != nil {
		t.Errorf("expected probe success, got: %v", err)
	}

	// A plain Redmine answering 200 without the marker header is not the
	// plugin; the probe must fail.
	withoutHeader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer withoutHeader.Close()

	c = NewClient(withoutHeader.URL, "key", "/extended", 5*time.Second)
	if err := c.ProbeExtended(context.Background()); err == nil {
		t.Error("expected probe failure without marker header")
	}

	c = NewClient(withoutHeader.URL, "key", "", 5*time.Second)
	if err := c.ProbeExtended(context.Background()); err == nil {
		t.Error("expected probe failure with extended API unconfigured")
	}
}
