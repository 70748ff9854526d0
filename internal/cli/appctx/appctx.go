// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup, database opening, and API
// client construction to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lherron/jiramine/internal/config"
	"github.com/lherron/jiramine/internal/db"
	"github.com/lherron/jiramine/internal/jira"
	"github.com/lherron/jiramine/internal/redmine"
	"github.com/lherron/jiramine/internal/store"
	"github.com/spf13/cobra"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB with the mapping and snapshot stores
	Store *store.Store

	// Jira and Redmine are the API clients (nil if NeedsClients is false)
	Jira    *jira.Client
	Redmine *redmine.Client

	Logger *slog.Logger
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// NeedsClients indicates whether to validate client configuration and
	// construct the Jira and Redmine API clients.
	NeedsClients bool
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Override DB path from --db flag if provided
	if dbFlag := cmd.Flag("db"); dbFlag != nil {
		if dbPath := dbFlag.Value.String(); dbPath != "" {
			app.Config.DBPath = dbPath
		}
	}

	app.Logger = newLogger(cfg.LogLevel)

	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		app.DB = database
		app.Store = store.New(database)
	}

	if opts.NeedsClients {
		if err := cfg.ValidateClients(); err != nil {
			app.Close()
			return nil, err
		}
		timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
		app.Jira = jira.NewClient(cfg.JiraBaseURL, cfg.JiraUser, cfg.JiraToken, timeout)

		extPrefix := ""
		if cfg.ExtendedAPI {
			extPrefix = cfg.ExtendedAPIPrefix
		}
		app.Redmine = redmine.NewClient(cfg.RedmineBaseURL, cfg.RedmineAPIKey, extPrefix, timeout)
	}

	return app, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
