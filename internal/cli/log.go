package cli

import (
	"fmt"
	"time"

	"github.com/lherron/jiramine/internal/cli/appctx"
	"github.com/lherron/jiramine/internal/domain"
	"github.com/lherron/jiramine/internal/events"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent audit log events",
	Long: `Log lists the most recent entries of the audit event log. Every
automated mapping write (reconcile decision, push outcome) is recorded
there, so the log is the place to reconstruct what a run did.`,
	RunE: appctx.WithApp(appctx.Options{NeedsDB: true}, runLog),
}

var (
	logKind  string
	logLimit int
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().StringVar(&logKind, "unit", "", "Only show events for one unit")
	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Maximum number of events to show")
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	if logKind != "" {
		if err := domain.ValidateKind(logKind); err != nil {
			return err
		}
	}

	list, err := events.Recent(app.DB.DB, logKind, logLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events recorded.")
		return nil
	}

	for _, e := range list {
		payload := ""
		if e.Payload != nil {
			payload = " " + *e.Payload
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-22s%s\n",
			e.Timestamp.UTC().Format(time.RFC3339), e.Kind, e.EventType, payload)
	}
	return nil
}
