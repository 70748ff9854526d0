package cli

import (
	"fmt"

	"github.com/lherron/jiramine/internal/cli/appctx"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/phase"
	"github.com/lherron/jiramine/internal/push"
	"github.com/lherron/jiramine/internal/units"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <unit>...",
	Short: "Run migration phases for one or more units",
	Long: `Run executes the phases of the named migration units in order.

Units: project, group, tracker, role, membership, issue, checklist
(or "all" for every unit in dependency order).

Each unit has four phases, always executed in this order:
  jira       snapshot the source entities from Jira
  redmine    snapshot the existing target entities from Redmine
  transform  reconcile mapping rows against both snapshots
  push       write ready rows to Redmine (requires --confirm-push)

Use --phases to run a subset and --skip to exclude phases. Push never
mutates Redmine unless --confirm-push is given; --dry-run prints what
would be pushed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.Options{NeedsDB: true, NeedsClients: true}, runRun),
}

var (
	runPhases      []string
	runSkip        []string
	runConfirmPush bool
	runDryRun      bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&runPhases, "phases", nil, "Comma-separated phases to run (default: all)")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "Comma-separated phases to skip")
	runCmd.Flags().BoolVar(&runConfirmPush, "confirm-push", false, "Actually execute push actions against Redmine")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print planned push actions without executing them")
}

func selectedKinds(args []string) ([]domain.MappingKind, error) {
	var kinds []domain.MappingKind
	seen := make(map[domain.MappingKind]bool)
	for _, arg := range args {
		if arg == "all" {
			return domain.Kinds, nil
		}
		if err := domain.ValidateKind(arg); err != nil {
			return nil, err
		}
		kind := domain.MappingKind(arg)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func runRun(app *appctx.App, cmd *cobra.Command, args []string) error {
	kinds, err := selectedKinds(args)
	if err != nil {
		return err
	}

	unitApp := &units.App{
		Store:   app.Store,
		Jira:    app.Jira,
		Redmine: app.Redmine,
		Config:  app.Config,
		Logger:  app.Logger,
		Out:     cmd.OutOrStdout(),
		Push:    push.Options{Confirm: runConfirmPush, DryRun: runDryRun},
	}

	for _, kind := range kinds {
		plan, err := units.Plan(unitApp, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", kind)
		if err := phase.Run(cmd.Context(), plan, runPhases, runSkip, app.Logger); err != nil {
			return fmt.Errorf("unit %s: %w", kind, err)
		}
	}
	return nil
}
