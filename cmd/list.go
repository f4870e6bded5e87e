package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List valid workflow definitions",
		Args:  cobra.NoArgs,
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

			_, workflows, err := application.Validate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatWorkflows(workflows))
			return nil
		},
	}
}
