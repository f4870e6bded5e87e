package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepflow/internal/app"
	"stepflow/internal/config"
	"stepflow/internal/formatting"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid arguments, configuration or definitions).
	ExitCodeError = 1
	// ExitCodeRunFailed indicates that a workflow ran and failed.
	ExitCodeRunFailed = 2
)

// RunFailedError is returned by commands whose workflow run did not succeed.
type RunFailedError struct {
	WorkflowID string
	RunID      string
	Reason     string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("workflow %s failed (run %s): %s", e.WorkflowID, e.RunID, e.Reason)
}

var (
	// configPath overrides the configuration directory (default ~/.config/stepflow).
	configPath string
	// debug enables debug logging.
	debug bool
	// outputFormat selects console, table, json or yaml output.
	outputFormat string
	// quiet suppresses spinners and decorative output.
	quiet bool
)

// rootCmd represents the base command for the stepflow application.
var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "Run sequential tool workflows with cached step outputs",
	Long: `stepflow runs workflows: ordered steps that each invoke a tool with inputs
built from literals and references to earlier step outputs.

Step outputs can be cached per workflow with a time to live, in memory and
in a persistent tier (files or redis). Failed steps are retried with
exponential backoff according to their error policy.

Workflow definitions are YAML files in <config-path>/workflows. Tools are
either builtin (echo, sleep, fail, template) or served by MCP servers
configured in <config-path>/config.yaml.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stepflow version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var runFailed *RunFailedError
	if errors.As(err, &runFailed) {
		return ExitCodeRunFailed
	}
	return ExitCodeError
}

// newApplication bootstraps the application for a command.
func newApplication(cmd *cobra.Command) (*app.Application, error) {
	cfg := app.NewConfig(debug, configPath)
	cfg.LogOutput = cmd.ErrOrStderr()
	return app.NewApplication(cmd.Context(), cfg)
}

// newFormatter returns the formatter selected by --output.
func newFormatter(showOutputs bool) (formatting.Formatter, error) {
	if err := config.ValidateOneOf("output", outputFormat, formatting.OutputFormats); err != nil {
		return nil, err
	}
	return formatting.NewFactory().CreateFormatter(formatting.Options{
		Format:      formatting.OutputFormat(outputFormat),
		Quiet:       quiet,
		Color:       !quiet && isTerminal(os.Stdout),
		ShowOutputs: showOutputs,
	}), nil
}

// stdoutFile returns the command's output when it is a file.
func stdoutFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return f
	}
	return nil
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default: ~/.config/stepflow)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(formatting.FormatConsole), "Output format: console, table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress indicators and decorations")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newScheduleCmd())
}
