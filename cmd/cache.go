package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached step outputs",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [workflow-id...]",
		Short: "Show cache statistics",
		Long:  `Shows cache statistics for the given workflows, or for every defined workflow.`,
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

			stats, err := application.CacheStats(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatCacheStats(stats))
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [workflow-id...]",
		Short: "Remove cached step outputs",
		Long:  `Removes the cache of the given workflows, or the whole cache with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("specify workflow ids or --all")
			}
			if len(args) > 0 && all {
				return errors.New("--all cannot be combined with workflow ids")
			}

			application, err := newApplication(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.ClearCache(cmd.Context(), args); err != nil {
				return err
			}
			if all {
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared the whole cache")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache of %s\n", strings.Join(args, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear the cache of every workflow")
	return cmd
}
