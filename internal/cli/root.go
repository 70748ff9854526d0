package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jiramine",
	Short: "Resumable Jira-to-Redmine migration driver",
	Long: `jiramine migrates projects, groups, trackers, roles, memberships,
issues, and issue checklists from a Jira instance into Redmine.

All state lives in a local SQLite mapping database, so every run is
resumable: extraction snapshots both systems, reconciliation decides
per entity whether it matches an existing Redmine counterpart or needs
creation, and push writes to Redmine only with explicit confirmation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to mapping database file (overrides JIRAMINE_DB_PATH)")
}
