package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/cadence/internal/config"
	"github.com/harrison/cadence/internal/identifier"
	"github.com/harrison/cadence/internal/manifest"
	"github.com/harrison/cadence/internal/models"
	"github.com/harrison/cadence/internal/report"
	"github.com/harrison/cadence/internal/state"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <feature>",
		Short: "Report on a feature's recorded runs",
		Long: `Report on a feature's runs from its persisted manifest: the phase
timeline, the measured parallel speedup, and the current task state.

By default the report covers the most recent run in the manifest; pass
--run to select an earlier one, or --all to cover every recorded entry.

Examples:
  cadence report user_auth
  cadence report user_auth --run 4f7c2a1e
  cadence report user_auth --all`,
		Args: cobra.ExactArgs(1),
		RunE: reportCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .cadence/config.yaml)")
	cmd.Flags().String("run", "", "Run ID to report on (prefix match)")
	cmd.Flags().Bool("all", false, "Report across every recorded run")

	return cmd
}

func reportCommand(cmd *cobra.Command, args []string) error {
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

	name, rejection := identifier.Validate(args[0], cfg.WorkRoot)
	if rejection != nil {
		return rejection
	}

	entries, err := manifest.ReadFile(filepath.Join(cfg.ManifestDir, name+".ndjson"))
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no recorded runs for %s", name)
	}

	runFilter, _ := cmd.Flags().GetString("run")
	all, _ := cmd.Flags().GetBool("all")

	runID := ""
	switch {
	case all:
		// Keep every entry.
	case runFilter != "":
		runID, entries = selectRun(entries, runFilter)
		if len(entries) == 0 {
			return fmt.Errorf("no entries for run %q", runFilter)
		}
	default:
		runID = entries[len(entries)-1].RunID
		entries = filterRun(entries, runID)
	}

	r := report.Build(name, runID, entries, cfg.ParallelWindow)
	if doc, err := state.NewStore(cfg.StateDir).Read(name); err == nil {
		r.TaskStatus = doc.Status
	}

	r.Render(cmd.OutOrStdout())
	return nil
}

// selectRun keeps entries whose run ID starts with the given prefix and
// returns the full matched ID.
func selectRun(entries []models.ManifestEntry, prefix string) (string, []models.ManifestEntry) {
	runID := ""
	var out []models.ManifestEntry
	for _, e := range entries {
		if strings.HasPrefix(e.RunID, prefix) {
			runID = e.RunID
			out = append(out, e)
		}
	}
	return runID, out
}
