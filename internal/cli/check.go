package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/cadence/internal/config"
	"github.com/harrison/cadence/internal/descriptor"
	"github.com/harrison/cadence/internal/identifier"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <descriptor-or-name>",
		Short: "Check a feature name or descriptor without running anything",
		Long: `Check runs the identifier security checks against a feature name, or
parses a descriptor file and reports the authorized name, its sections,
and any config overrides. Nothing is created on disk.

A refused name exits with code 2 and names the check that refused it.

Examples:
  cadence check user_auth
  cadence check prps/INITIAL_user_auth.md
  cadence check "../../etc/passwd"`,
		Args: cobra.ExactArgs(1),
		RunE: checkCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .cadence/config.yaml)")
	cmd.Flags().String("work-root", "", "Root directory the name would be joined under")

	return cmd
}

func checkCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigOrDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	workRoot := cfg.WorkRoot
	if cmd.Flags().Changed("work-root") {
		workRoot, _ = cmd.Flags().GetString("work-root")
	}

	out := cmd.OutOrStdout()
	arg := args[0]

	if strings.HasSuffix(arg, ".md") {
		desc, rejection, err := descriptor.NewParser().Parse(arg, workRoot)
		if err != nil {
			return err
		}
		if rejection != nil {
			return rejection
		}
		fmt.Fprintf(out, "Descriptor OK\n")
		fmt.Fprintf(out, "Feature name: %s\n", desc.FeatureName)
		if len(desc.Sections) > 0 {
			fmt.Fprintf(out, "Sections: %s\n", strings.Join(desc.Sections, ", "))
		}
		printOverrides(out, desc)
		return nil
	}

	name, rejection := identifier.Validate(arg, workRoot)
	if rejection != nil {
		return rejection
	}
	fmt.Fprintf(out, "Name OK\n")
	fmt.Fprintf(out, "Authorized name: %s\n", name)
	return nil
}

func printOverrides(out io.Writer, desc *descriptor.Descriptor) {
	o := desc.Overrides
	if o.MaxAttempts == nil && o.CoverageThreshold == nil && o.PhaseTimeout == "" {
		return
	}
	fmt.Fprintf(out, "Overrides:\n")
	if o.MaxAttempts != nil {
		fmt.Fprintf(out, "  max_attempts: %d\n", *o.MaxAttempts)
	}
	if o.CoverageThreshold != nil {
		fmt.Fprintf(out, "  coverage_threshold: %.1f\n", *o.CoverageThreshold)
	}
	if o.PhaseTimeout != "" {
		fmt.Fprintf(out, "  phase_timeout: %s\n", o.PhaseTimeout)
	}
}
