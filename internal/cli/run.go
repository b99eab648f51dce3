package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/cadence/internal/config"
	"github.com/harrison/cadence/internal/descriptor"
	"github.com/harrison/cadence/internal/executor"
	"github.com/harrison/cadence/internal/identifier"
	"github.com/harrison/cadence/internal/logger"
	"github.com/harrison/cadence/internal/manifest"
	"github.com/harrison/cadence/internal/models"
	"github.com/harrison/cadence/internal/report"
	"github.com/harrison/cadence/internal/state"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <descriptor-or-name>",
		Short: "Run a feature through the phase pipeline",
		Long: `Run a feature through the fixed phase pipeline: plan, the parallel
implement group, integrate, and review.

The argument is either a descriptor file (prps/INITIAL_<name>.md) or a
bare feature name. Either way the name passes every identifier security
check before any path is derived from it; a refused name exits with
code 2 and nothing is created on disk.

Phase outcomes are appended to the feature's manifest as they happen.
Validated phases run the gate sequence with bounded retries; if the
retry budget is exhausted the task reopens to doing and the run exits
with code 3.

Examples:
  cadence run prps/INITIAL_user_auth.md
  cadence run user_auth
  cadence run --dry-run prps/INITIAL_user_auth.md
  cadence run --timeout 30m --max-attempts 5 user_auth
  cadence run --config custom.yaml user_auth`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .cadence/config.yaml)")
	cmd.Flags().Bool("dry-run", false, "Validate the descriptor and plan without executing phases")
	cmd.Flags().String("work-root", "", "Root directory feature work dirs are created under")
	cmd.Flags().Int("max-attempts", 0, "Maximum validation attempts per validated phase")
	cmd.Flags().Float64("coverage-threshold", 0, "Minimum coverage percentage the coverage gate accepts")
	cmd.Flags().String("timeout", "", "Per-phase timeout (e.g. 30m, 2h)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("log-level", "", "Log level for the run log (trace, debug, info, warn, error)")
	cmd.Flags().Bool("no-color", false, "Disable colored console output")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	name, desc, rejection, err := resolveFeature(args[0], cfg.WorkRoot)
	if err != nil {
		return err
	}
	if rejection != nil {
		return rejection
	}

	workContext := ""
	if desc != nil {
		if err := desc.Apply(cfg); err != nil {
			return err
		}
		workContext = desc.Body
	}

	workDir := filepath.Join(cfg.WorkRoot, name)
	feature := models.NewFeature(name, workDir)

	if cfg.DryRun {
		return printDryRun(cmd, cfg, feature, desc)
	}

	if len(cfg.ExecutorCommand) == 0 {
		return fmt.Errorf("no executor command configured; set executor_command in the config file")
	}

	runID := uuid.New().String()

	phaseExec, err := executor.NewSubprocessExecutor(cfg.ExecutorCommand)
	if err != nil {
		return err
	}

	manifestLog, err := manifest.Open(cfg.ManifestDir, name, runID)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}

	store := state.NewStore(cfg.StateDir)

	gates := buildGates(cfg)
	loop := executor.NewValidationLoop(cfg.MaxAttempts, &executorRemediator{
		executor: phaseExec,
		feature:  feature,
	})

	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.NoColor)
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel, runID)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := logger.NewMulti(consoleLog, fileLog)

	orch, err := executor.NewOrchestrator(phaseExec, manifestLog, store, loop, gates, cfg, multiLog)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Running %s (run %s)\n\n", name, runID)
	result, runErr := orch.Run(context.Background(), feature, workContext)

	if result != nil {
		renderRunReport(cmd, cfg, store, name, runID, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nLogs written to: %s\n", fileLog.Path())

	return runErr
}

// loadMergedConfig loads the config file and merges changed flags over it.
func loadMergedConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigOrDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Build flag pointers for merge (only changed values).
	var workRootPtr, logDirPtr, logLevelPtr *string
	var maxAttemptsPtr *int
	var coveragePtr *float64
	var timeoutPtr *time.Duration
	var noColorPtr, dryRunPtr *bool

	if cmd.Flags().Changed("work-root") {
		v, _ := cmd.Flags().GetString("work-root")
		workRootPtr = &v
	}
	if cmd.Flags().Changed("max-attempts") {
		v, _ := cmd.Flags().GetInt("max-attempts")
		maxAttemptsPtr = &v
	}
	if cmd.Flags().Changed("coverage-threshold") {
		v, _ := cmd.Flags().GetFloat64("coverage-threshold")
		coveragePtr = &v
	}
	if cmd.Flags().Changed("timeout") {
		s, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", s, err)
		}
		timeoutPtr = &timeout
	}
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &v
	}
	if cmd.Flags().Changed("log-level") {
		v, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &v
	}
	if cmd.Flags().Changed("no-color") {
		v, _ := cmd.Flags().GetBool("no-color")
		noColorPtr = &v
	}
	if cmd.Flags().Changed("dry-run") {
		v, _ := cmd.Flags().GetBool("dry-run")
		dryRunPtr = &v
	}

	cfg.MergeWithFlags(workRootPtr, maxAttemptsPtr, coveragePtr, timeoutPtr, logDirPtr, logLevelPtr, noColorPtr, dryRunPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveFeature turns the command argument into an authorized feature
// name. A path ending in .md is parsed as a descriptor; anything else is
// validated as a bare name.
func resolveFeature(arg, workRoot string) (string, *descriptor.Descriptor, *identifier.Rejection, error) {
	if strings.HasSuffix(arg, ".md") {
		desc, rejection, err := descriptor.NewParser().Parse(arg, workRoot)
		if err != nil || rejection != nil {
			return "", nil, rejection, err
		}
		return desc.FeatureName, desc, nil, nil
	}

	name, rejection := identifier.Validate(arg, workRoot)
	if rejection != nil {
		return "", nil, rejection, nil
	}
	return name, nil, nil, nil
}

func buildGates(cfg *config.Config) []executor.Gate {
	gates := make([]executor.Gate, 0, len(cfg.Gates))
	for _, gc := range cfg.Gates {
		var gate executor.Gate = &executor.SubprocessGate{GateName: gc.Name, Command: gc.Command}
		if strings.EqualFold(gc.Name, "coverage") {
			gate = &executor.CoverageGate{Inner: gate, Threshold: cfg.CoverageThreshold}
		}
		gates = append(gates, gate)
	}
	return gates
}

func printDryRun(cmd *cobra.Command, cfg *config.Config, feature *models.Feature, desc *descriptor.Descriptor) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Feature: %s\n", feature.Name)
	fmt.Fprintf(out, "Work dir: %s\n", feature.WorkDir)
	if desc != nil && len(desc.Sections) > 0 {
		fmt.Fprintf(out, "Sections: %s\n", strings.Join(desc.Sections, ", "))
	}
	fmt.Fprintf(out, "\nPhase pipeline:\n")
	fmt.Fprintf(out, "  1. %s\n", executor.PhasePlan)
	fmt.Fprintf(out, "  2. %s (parallel)\n", strings.Join(executor.ParallelPhases(), " | "))
	fmt.Fprintf(out, "  3. %s\n", executor.PhaseIntegrate)
	fmt.Fprintf(out, "  4. %s\n", executor.PhaseReview)
	fmt.Fprintf(out, "\nValidated phases: %s\n", strings.Join(cfg.ValidatedPhases, ", "))
	fmt.Fprintf(out, "Max validation attempts: %d\n", cfg.MaxAttempts)
	fmt.Fprintf(out, "Coverage threshold: %.1f%%\n", cfg.CoverageThreshold)
	fmt.Fprintf(out, "Phase timeout: %s\n", cfg.PhaseTimeout)
	fmt.Fprintf(out, "\nDry-run mode: descriptor and plan are valid, nothing was executed.\n")
	return nil
}

// renderRunReport builds and prints the post-run report from the manifest
// the run just wrote. Report failures only warn; the run outcome stands.
func renderRunReport(cmd *cobra.Command, cfg *config.Config, store *state.Store, name, runID string, result *models.RunResult) {
	entries, err := manifest.ReadFile(filepath.Join(cfg.ManifestDir, name+".ndjson"))
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Warning: failed to read manifest for report: %v\n", err)
		return
	}

	r := report.Build(name, runID, filterRun(entries, runID), cfg.ParallelWindow)
	r.Validation = result.Validation
	r.FilesChanged = result.FilesChanged
	if doc, err := store.Read(name); err == nil {
		r.TaskStatus = doc.Status
	}

	fmt.Fprintln(cmd.OutOrStdout())
	r.Render(cmd.OutOrStdout())
}

func filterRun(entries []models.ManifestEntry, runID string) []models.ManifestEntry {
	var out []models.ManifestEntry
	for _, e := range entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// executorRemediator asks the phase executor to fix the artifact between
// validation attempts. The gate failure reports become the work context
// so the executor knows exactly what to address.
type executorRemediator struct {
	executor executor.PhaseExecutor
	feature  *models.Feature
}

func (r *executorRemediator) Remediate(ctx context.Context, artifact string, failures []models.GateFailure) error {
	var sb strings.Builder
	sb.WriteString("Fix the following validation failures:\n")
	for _, f := range failures {
		fmt.Fprintf(&sb, "- gate %s (%s): %s\n", f.Gate, f.Category, f.Report)
	}

	output, err := r.executor.Execute(ctx, executor.WorkDescriptor{
		FeatureName:    r.feature.Name,
		PhaseID:        "remediate",
		WorkDir:        r.feature.WorkDir,
		PriorArtifacts: []string{artifact},
		Context:        sb.String(),
	})
	if err != nil {
		return err
	}
	if !output.Success {
		return fmt.Errorf("remediation failed: %s", output.Diagnostics)
	}
	return nil
}
