package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stepflow/internal/api"
)

func newScheduleCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run workflows on their cron schedules",
		Long: `Runs every workflow that has a schedule (standard five-field cron syntax)
until interrupted. A scheduled run is skipped while the previous run of the
same workflow is still in progress.

With --list, prints the scheduled workflows and their next run and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter(false)
			if err != nil {
				return err
			}
			application, err := newApplication(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			out := cmd.OutOrStdout()
			if list {
				s, err := application.NewScheduler(nil)
				if err != nil {
					return err
				}
				// Next run times are only computed once the cron loop runs.
				s.Start(cmd.Context())
				entries := s.Entries()
				s.Stop()
				fmt.Fprintln(out, formatter.FormatSchedule(entries))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return application.RunScheduler(ctx, func(result *api.WorkflowResult) {
				fmt.Fprintln(out, formatter.FormatRunResult(result))
			})
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List scheduled workflows and exit")
	return cmd
}
