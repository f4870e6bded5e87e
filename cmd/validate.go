package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every workflow definition",
		Long: `Loads every file in <config-path>/workflows and reports definitions that
fail to parse or validate: duplicate step ids, unknown tools, invalid error
policies or schedules, and references to steps that do not run earlier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			errs, workflows, err := application.Validate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d valid workflows\n", len(workflows))
			if errs.HasErrors() {
				fmt.Fprintln(out, errs.GetSummary())
				return fmt.Errorf("%d workflow definitions are invalid", len(errs.Errors))
			}
			return nil
		},
	}
}
