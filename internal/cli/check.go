package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lherron/jiramine/internal/config"
	"github.com/lherron/jiramine/internal/db"
	"github.com/lherron/jiramine/internal/jira"
	"github.com/lherron/jiramine/internal/redmine"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, database, and API connectivity",
	Long: `Performs health checks before a migration run: configuration
completeness, mapping database state, Jira credentials, Redmine
credentials, and (when enabled) the extended API plugin.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	Name    string
	Status  string // "ok", "warning", "error"
	Message string
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}

	var checks []checkResult

	// Configuration
	if err := cfg.ValidateClients(); err != nil {
		checks = append(checks, checkResult{"config", "error", err.Error()})
	} else {
		checks = append(checks, checkResult{"config", "ok", "all required settings present"})
	}

	// Database
	checks = append(checks, checkDatabase(cfg.DBPath))

	// API connectivity only makes sense with complete client config
	if cfg.ValidateClients() == nil {
		timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
		ctx := cmd.Context()

		jc := jira.NewClient(cfg.JiraBaseURL, cfg.JiraUser, cfg.JiraToken, timeout)
		if err := jc.Ping(ctx); err != nil {
			checks = append(checks, checkResult{"jira", "error", err.Error()})
		} else {
			checks = append(checks, checkResult{"jira", "ok", fmt.Sprintf("authenticated against %s", cfg.JiraBaseURL)})
		}

		extPrefix := ""
		if cfg.ExtendedAPI {
			extPrefix = cfg.ExtendedAPIPrefix
		}
		rc := redmine.NewClient(cfg.RedmineBaseURL, cfg.RedmineAPIKey, extPrefix, timeout)
		if err := rc.Ping(ctx); err != nil {
			checks = append(checks, checkResult{"redmine", "error", err.Error()})
		} else {
			checks = append(checks, checkResult{"redmine", "ok", fmt.Sprintf("authenticated against %s", cfg.RedmineBaseURL)})
		}

		if cfg.ExtendedAPI {
			if err := rc.ProbeExtended(ctx); err != nil {
				checks = append(checks, checkResult{"extended_api", "error", err.Error()})
			} else {
				checks = append(checks, checkResult{"extended_api", "ok", "extended API plugin responding"})
			}
		} else {
			checks = append(checks, checkResult{"extended_api", "warning", "disabled; tracker, role, and checklist push will fail"})
		}
	}

	errors := 0
	for _, c := range checks {
		icon := "✓"
		switch c.Status {
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
			errors++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	if errors > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d check(s) failed\n", errors)
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nAll checks passed")
	return nil
}

func checkDatabase(dbPath string) checkResult {
	database, err := db.Open(dbPath)
	if err != nil {
		return checkResult{"database", "error", err.Error()}
	}
	defer database.Close()

	_, pending, err := database.MigrationStatus()
	if err != nil {
		return checkResult{"database", "error", err.Error()}
	}
	if len(pending) > 0 {
		return checkResult{"database", "error",
			fmt.Sprintf("%d pending migration(s); run 'jiramine db migrate'", len(pending))}
	}
	return checkResult{"database", "ok", fmt.Sprintf("mapping database at %s is up to date", dbPath)}
}
