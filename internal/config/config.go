package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	DBPath string `yaml:"db_path"`

	JiraBaseURL string `yaml:"jira_base_url"`
	JiraUser    string `yaml:"jira_user"`
	JiraToken   string `yaml:"jira_token"`

	RedmineBaseURL string `yaml:"redmine_base_url"`
	RedmineAPIKey  string `yaml:"redmine_api_key"`

	// JiraIssueJQL narrows the issue extraction query. Empty extracts
	// every issue the credentials can see.
	JiraIssueJQL string `yaml:"jira_issue_jql"`

	// DefaultIssueStatusID is the fallback default status for proposed
	// trackers. Zero means unset; tracker proposals then require manual
	// intervention.
	DefaultIssueStatusID int64 `yaml:"default_issue_status_id"`

	// ExtendedAPI enables the Redmine extended API plugin used for
	// tracker/role creation and checklist rewriting.
	ExtendedAPI       bool   `yaml:"extended_api"`
	ExtendedAPIPrefix string `yaml:"extended_api_prefix"`

	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	LogLevel           string `yaml:"log_level"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/jiramine/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		ExtendedAPIPrefix:  "/extended",
		HTTPTimeoutSeconds: 30,
		LogLevel:           "info",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	_ = loadYAMLConfig(cfg)

	// Override with environment variables
	if dbPath := getEnvOrFile("JIRAMINE_DB_PATH", "JIRAMINE_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if v := os.Getenv("JIRAMINE_JIRA_BASE_URL"); v != "" {
		cfg.JiraBaseURL = v
	}
	if v := os.Getenv("JIRAMINE_JIRA_USER"); v != "" {
		cfg.JiraUser = v
	}
	if v := getEnvOrFile("JIRAMINE_JIRA_TOKEN", "JIRAMINE_JIRA_TOKEN_FILE"); v != "" {
		cfg.JiraToken = v
	}
	if v := os.Getenv("JIRAMINE_REDMINE_BASE_URL"); v != "" {
		cfg.RedmineBaseURL = v
	}
	if v := getEnvOrFile("JIRAMINE_REDMINE_API_KEY", "JIRAMINE_REDMINE_API_KEY_FILE"); v != "" {
		cfg.RedmineAPIKey = v
	}
	if v := os.Getenv("JIRAMINE_JIRA_ISSUE_JQL"); v != "" {
		cfg.JiraIssueJQL = v
	}
	if v := os.Getenv("JIRAMINE_DEFAULT_ISSUE_STATUS_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JIRAMINE_DEFAULT_ISSUE_STATUS_ID: %w", err)
		}
		cfg.DefaultIssueStatusID = id
	}
	if v := os.Getenv("JIRAMINE_EXTENDED_API"); v != "" {
		cfg.ExtendedAPI = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("JIRAMINE_EXTENDED_API_PREFIX"); v != "" {
		cfg.ExtendedAPIPrefix = v
	}
	if v := os.Getenv("JIRAMINE_HTTP_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JIRAMINE_HTTP_TIMEOUT_SECONDS: %w", err)
		}
		cfg.HTTPTimeoutSeconds = secs
	}
	if v := os.Getenv("JIRAMINE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Set defaults if not configured
	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".jiramine/jiramine.db"); err == nil {
			cfg.DBPath = ".jiramine/jiramine.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "jiramine", "jiramine.db")
		}
	}

	return cfg, nil
}

// ValidateClients checks that the settings required for source and target
// API access are present. Missing required settings are fatal immediately;
// no partial execution.
func (c *Config) ValidateClients() error {
	var missing []string
	if c.JiraBaseURL == "" {
		missing = append(missing, "jira_base_url (JIRAMINE_JIRA_BASE_URL)")
	}
	if c.JiraUser == "" {
		missing = append(missing, "jira_user (JIRAMINE_JIRA_USER)")
	}
	if c.JiraToken == "" {
		missing = append(missing, "jira_token (JIRAMINE_JIRA_TOKEN)")
	}
	if c.RedmineBaseURL == "" {
		missing = append(missing, "redmine_base_url (JIRAMINE_REDMINE_BASE_URL)")
	}
	if c.RedmineAPIKey == "" {
		missing = append(missing, "redmine_api_key (JIRAMINE_REDMINE_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/jiramine/config.yaml.
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "jiramine", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set.
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
