package cli

import (
	"fmt"

	"github.com/lherron/jiramine/internal/config"
	"github.com/lherron/jiramine/internal/db"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the mapping database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run any pending database migrations",
	Long: `Migrate applies any pending SQL migrations to the mapping database.

Migrations are embedded in the jiramine binary and tracked via the
schema_migrations table. Each migration file (e.g., 000001_baseline.sql)
is applied exactly once.

This command is safe to run multiple times - it only applies migrations
that haven't been applied yet.

Use --dry-run to see which migrations would be applied without running them.`,
	RunE: runDBMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runDBStatus,
}

var dbMigrateDryRun bool

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	dbMigrateCmd.Flags().BoolVar(&dbMigrateDryRun, "dry-run", false, "Show which migrations would be applied without running them")
}

// openDBForAdmin opens the database without the pending-migration check that
// the regular bootstrap performs.
func openDBForAdmin(cmd *cobra.Command) (*db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	database, err := openDBForAdmin(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if dbMigrateDryRun {
		_, pending, err := database.MigrationStatus()
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		if len(pending) == 0 {
			fmt.Println("No pending migrations. Database is up to date.")
			return nil
		}
		fmt.Println("Pending migrations (would be applied):")
		for _, m := range pending {
			fmt.Printf("  ○ %s\n", m)
		}
		return nil
	}

	applied, err := database.Migrate()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if len(applied) == 0 {
		fmt.Println("Database is up to date. No migrations to apply.")
	} else {
		for _, m := range applied {
			fmt.Printf("✓ Applied migration: %s\n", m)
		}
		fmt.Printf("\nApplied %d migration(s).\n", len(applied))
	}
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	database, err := openDBForAdmin(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if len(applied) == 0 && len(pending) == 0 {
		fmt.Println("No migrations found.")
		return nil
	}

	if len(applied) > 0 {
		fmt.Println("Applied migrations:")
		for _, m := range applied {
			fmt.Printf("  ✓ %s\n", m)
		}
	}
	if len(pending) > 0 {
		if len(applied) > 0 {
			fmt.Println()
		}
		fmt.Println("Pending migrations:")
		for _, m := range pending {
			fmt.Printf("  ○ %s\n", m)
		}
	}
	return nil
}
