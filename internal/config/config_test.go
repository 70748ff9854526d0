package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindEnvLocal_InCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=value"), 0644); err != nil {
		t.Fatal(err)
	}

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	if result := findEnvLocal(); result == "" {
		t.Error("expected to find .env.local in current directory")
	}
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	if err := os.Mkdir(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in parent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JIRAMINE_DB_PATH", "/tmp/custom.db")
	t.Setenv("JIRAMINE_JIRA_BASE_URL", "https://example.atlassian.net")
	t.Setenv("JIRAMINE_JIRA_USER", "bot@example.com")
	t.Setenv("JIRAMINE_JIRA_TOKEN", "secret")
	t.Setenv("JIRAMINE_REDMINE_BASE_URL", "https://redmine.example.com")
	t.Setenv("JIRAMINE_REDMINE_API_KEY", "key")
	t.Setenv("JIRAMINE_DEFAULT_ISSUE_STATUS_ID", "2")
	t.Setenv("JIRAMINE_EXTENDED_API", "true")
	t.Setenv("JIRAMINE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("expected db path override, got %q", cfg.DBPath)
	}
	if cfg.JiraBaseURL != "https://example.atlassian.net" || cfg.JiraUser != "bot@example.com" {
		t.Errorf("unexpected jira config: %+v", cfg)
	}
	if cfg.DefaultIssueStatusID != 2 {
		t.Errorf("expected status id 2, got %d", cfg.DefaultIssueStatusID)
	}
	if !cfg.ExtendedAPI {
		t.Error("expected extended API enabled")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}
	if err := cfg.ValidateClients(); err != nil {
		t.Errorf("expected valid client config, got: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ExtendedAPIPrefix != "/extended" {
		t.Errorf("expected default extended prefix, got %q", cfg.ExtendedAPIPrefix)
	}
	if cfg.HTTPTimeoutSeconds != 30 {
		t.Errorf("expected default timeout 30, got %d", cfg.HTTPTimeoutSeconds)
	}
	if cfg.LogLevel == "" {
		t.Error("expected default log level")
	}
}

func TestLoadTokenFromFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("file-secret"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JIRAMINE_JIRA_TOKEN", "")
	t.Setenv("JIRAMINE_JIRA_TOKEN_FILE", tokenFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.JiraToken != "file-secret" {
		t.Errorf("expected token from file, got %q", cfg.JiraToken)
	}
}

func TestValidateClientsMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateClients()
	if err == nil {
		t.Fatal("expected error for empty client config")
	}
}
