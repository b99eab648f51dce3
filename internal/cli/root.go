// Package cli wires the cadence commands: running a feature through the
// phase pipeline, reporting on past runs, and checking descriptors
// without executing anything.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for cadence.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "Task pipeline orchestrator",
		Long: `Cadence drives a feature through a fixed phase pipeline: plan, a
parallel implement group, integrate, and review. Phase outcomes are
appended to a per-feature manifest and the task state advances through
an enforced lifecycle as phases complete and validation gates pass.

Feature descriptors live under prps/ as INITIAL_<name>.md files; the
feature name is derived from the filename and must pass every identifier
security check before any path is built from it.

Configuration is loaded from .cadence/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewCheckCommand())

	return cmd
}
