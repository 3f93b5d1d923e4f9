package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/anvilbuild/anvil/internal/ctxlog"
)

// NewRootCmd builds the anvil command tree.
func NewRootCmd() *cobra.Command {
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:           "anvil",
		Short:         "Build and test the native toolchain distribution",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := newLogger(logLevel, logFormat, os.Stderr)
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newTestCmd())
	return cmd
}

// defaultJobs is shared by both commands: saturate the machine unless told
// otherwise.
func defaultJobs() int {
	return runtime.NumCPU()
}
