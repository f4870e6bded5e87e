package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stepflow/internal/config"
	"stepflow/internal/workflow"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		offset int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history <workflow-id>",
		Short: "List recorded runs of a workflow",
		Long:  `Lists recorded runs of a workflow, newest first.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				if err := config.ValidateOneOf("status", status, []string{workflow.RunStatusSucceeded, workflow.RunStatusFailed}); err != nil {
					return err
				}
			}
			formatter, err := newFormatter(false)
			if err != nil {
				return err
			}
			application, err := newApplication(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			page, err := application.History(cmd.Context(), workflow.ListRunsRequest{
				WorkflowID: args[0],
				Status:     status,
				Limit:      limit,
				Offset:     offset,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatHistory(page))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", workflow.DefaultHistoryLimit, fmt.Sprintf("Maximum number of runs (at most %d)", workflow.MaxHistoryLimit))
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&status, "status", "", "Only show succeeded or failed runs")
	return cmd
}
