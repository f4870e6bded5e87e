package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"stepflow/internal/events"
)

func newRunCmd() *cobra.Command {
	var showOutputs bool
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Run a workflow once",
		Long: `Runs a workflow and prints the result of every step.

The workflow is read from <config-path>/workflows/<workflow-id>.yaml, or
found by id among all definitions. The command exits with code 2 when the
run fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter(showOutputs)
			if err != nil {
				return err
			}

			application, err := newApplication(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := cmd.Context()
			if clearCache {
				if err := application.ClearCache(ctx, args); err != nil {
					return err
				}
			}

			var s *spinner.Spinner
			if !quiet && isTerminal(stdoutFile(cmd)) {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" Running workflow %s...", args[0])
				s.Writer = cmd.ErrOrStderr()
				unsubscribe := application.Services().Events.Subscribe(events.StepStarted, func(evt events.Event) error {
					s.Lock()
					s.Suffix = " " + evt.Message
					s.Unlock()
					return nil
				})
				defer unsubscribe()
				s.Start()
			}

			result, err := application.RunWorkflow(ctx, args[0])
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatRunResult(result))
			if !result.Success {
				if s != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), text.FgRed.Sprint("Workflow failed"))
				}
				return &RunFailedError{WorkflowID: result.WorkflowID, RunID: result.RunID, Reason: result.Error}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOutputs, "show-outputs", false, "Include step outputs in the result")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Clear the workflow's cache before running")
	return cmd
}
