package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/lherron/jiramine/internal/cli/appctx"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [unit]",
	Short: "Show mapping-row counts per migration status",
	Long: `Status summarizes the mapping database: for each unit (or the one
named), the number of rows in each migration status. Rows in
manual_intervention_required are the ones a human needs to look at.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.Options{NeedsDB: true}, runStatus),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusOrder fixes the display order of statuses, roughly source-to-target.
var statusOrder = []domain.MigrationStatus{
	domain.StatusPendingAnalysis,
	domain.StatusAwaitingProject,
	domain.StatusAwaitingGroup,
	domain.StatusAwaitingRole,
	domain.StatusAwaitingIssue,
	domain.StatusMatchFound,
	domain.StatusReadyForCreation,
	domain.StatusReadyForAssignment,
	domain.StatusManualIntervention,
	domain.StatusCreationSuccess,
	domain.StatusCreationFailed,
	domain.StatusAssignmentRecorded,
}

func runStatus(app *appctx.App, cmd *cobra.Command, args []string) error {
	kinds := domain.Kinds
	if len(args) == 1 {
		if err := domain.ValidateKind(args[0]); err != nil {
			return err
		}
		kinds = []domain.MappingKind{domain.MappingKind(args[0])}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tSTATUS\tCOUNT")
	for _, kind := range kinds {
		ms, err := app.Store.Mappings(kind)
		if err != nil {
			return err
		}
		counts, err := ms.StatusCounts()
		if err != nil {
			return err
		}
		total := 0
		for _, status := range statusOrder {
			if n := counts[status]; n > 0 {
				fmt.Fprintf(w, "%s\t%s\t%d\n", kind, status, n)
				total += n
			}
		}
		if total == 0 {
			fmt.Fprintf(w, "%s\t-\t0\n", kind)
		}
	}
	return w.Flush()
}
