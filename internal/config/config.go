// Package config loads cadence configuration from .cadence/config.yaml
// with sensible defaults and CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GateConfig names one validation gate and the external command that
// implements it. The command receives the artifact path as its final
// argument and prints its report to stdout; exit code zero means passed.
type GateConfig struct {
	// Name identifies the gate (style, tests, coverage).
	Name string `yaml:"name"`

	// Command is the executable to invoke, with arguments.
	Command []string `yaml:"command"`
}

// Config represents cadence configuration options.
type Config struct {
	// WorkRoot is the directory feature working directories live under.
	WorkRoot string

	// ExecutorCommand is the external phase executor invoked with a work
	// descriptor on stdin. Empty means phases cannot execute (check and
	// report commands still work).
	ExecutorCommand []string

	// Gates lists the validation gates in the order they run.
	Gates []GateConfig

	// ValidatedPhases names the phases wrapped by the validation loop.
	ValidatedPhases []string

	// MaxAttempts bounds the validation loop's retry budget.
	MaxAttempts int

	// CoverageThreshold is the minimum coverage percentage the coverage
	// gate accepts.
	CoverageThreshold float64

	// ParallelWindow is the maximum gap between started timestamps for
	// phases to count as the same parallel group.
	ParallelWindow time.Duration

	// PhaseTimeout is the maximum execution time per phase.
	PhaseTimeout time.Duration

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string

	// LogDir is the directory where run logs are written.
	LogDir string

	// ManifestDir is the directory where per-feature manifests live.
	ManifestDir string

	// StateDir is the directory where task state files live.
	StateDir string

	// NoColor disables colored console output.
	NoColor bool

	// DryRun validates the descriptor and plan without executing phases.
	DryRun bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		WorkRoot: ".",
		Gates: []GateConfig{
			{Name: "style", Command: []string{"cadence-gate", "style"}},
			{Name: "tests", Command: []string{"cadence-gate", "tests"}},
			{Name: "coverage", Command: []string{"cadence-gate", "coverage"}},
		},
		ValidatedPhases:   []string{"integrate"},
		MaxAttempts:       3,
		CoverageThreshold: 70,
		ParallelWindow:    5 * time.Second,
		PhaseTimeout:      1 * time.Hour,
		LogLevel:          "info",
		LogDir:            filepath.Join(".cadence", "logs"),
		ManifestDir:       filepath.Join(".cadence", "manifests"),
		StateDir:          filepath.Join(".cadence", "state"),
	}
}

// DefaultConfigPath is where LoadConfigOrDefault looks for a config file.
var DefaultConfigPath = filepath.Join(".cadence", "config.yaml")

// yamlConfig is the on-disk form. Durations are strings so the file can say
// "30m" or "2h" rather than nanosecond integers.
type yamlConfig struct {
	WorkRoot          string       `yaml:"work_root"`
	ExecutorCommand   []string     `yaml:"executor_command"`
	Gates             []GateConfig `yaml:"gates"`
	ValidatedPhases   []string     `yaml:"validated_phases"`
	MaxAttempts       int          `yaml:"max_attempts"`
	CoverageThreshold *float64     `yaml:"coverage_threshold"`
	ParallelWindow    string       `yaml:"parallel_window"`
	PhaseTimeout      string       `yaml:"phase_timeout"`
	LogLevel          string       `yaml:"log_level"`
	LogDir            string       `yaml:"log_dir"`
	ManifestDir       string       `yaml:"manifest_dir"`
	StateDir          string       `yaml:"state_dir"`
	NoColor           bool         `yaml:"no_color"`
	DryRun            bool         `yaml:"dry_run"`
}

// LoadConfig reads configuration from the given path, merging file values
// over defaults. A missing file is an error here; use LoadConfigOrDefault
// for the optional default path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if yamlCfg.WorkRoot != "" {
		cfg.WorkRoot = yamlCfg.WorkRoot
	}
	if len(yamlCfg.ExecutorCommand) > 0 {
		cfg.ExecutorCommand = yamlCfg.ExecutorCommand
	}
	if len(yamlCfg.Gates) > 0 {
		cfg.Gates = yamlCfg.Gates
	}
	if len(yamlCfg.ValidatedPhases) > 0 {
		cfg.ValidatedPhases = yamlCfg.ValidatedPhases
	}
	if yamlCfg.MaxAttempts != 0 {
		cfg.MaxAttempts = yamlCfg.MaxAttempts
	}
	if yamlCfg.CoverageThreshold != nil {
		cfg.CoverageThreshold = *yamlCfg.CoverageThreshold
	}
	if yamlCfg.ParallelWindow != "" {
		window, err := time.ParseDuration(yamlCfg.ParallelWindow)
		if err != nil {
			return nil, fmt.Errorf("invalid parallel_window %q: %w", yamlCfg.ParallelWindow, err)
		}
		cfg.ParallelWindow = window
	}
	if yamlCfg.PhaseTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.PhaseTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid phase_timeout %q: %w", yamlCfg.PhaseTimeout, err)
		}
		cfg.PhaseTimeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.ManifestDir != "" {
		cfg.ManifestDir = yamlCfg.ManifestDir
	}
	if yamlCfg.StateDir != "" {
		cfg.StateDir = yamlCfg.StateDir
	}
	if yamlCfg.NoColor {
		cfg.NoColor = true
	}
	if yamlCfg.DryRun {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads DefaultConfigPath if it exists, otherwise
// returns defaults. A malformed config file is an error, not a silent
// fallback.
func LoadConfigOrDefault() (*Config, error) {
	if _, err := os.Stat(DefaultConfigPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadConfig(DefaultConfigPath)
}

// MergeWithFlags merges CLI flag values into the configuration. Non-nil
// values override the file, so flags always win.
func (c *Config) MergeWithFlags(workRoot *string, maxAttempts *int, coverage *float64, timeout *time.Duration, logDir, logLevel *string, noColor, dryRun *bool) {
	if workRoot != nil {
		c.WorkRoot = *workRoot
	}
	if maxAttempts != nil {
		c.MaxAttempts = *maxAttempts
	}
	if coverage != nil {
		c.CoverageThreshold = *coverage
	}
	if timeout != nil {
		c.PhaseTimeout = *timeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if noColor != nil {
		c.NoColor = *noColor
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.CoverageThreshold < 0 || c.CoverageThreshold > 100 {
		return fmt.Errorf("coverage_threshold must be between 0 and 100, got %v", c.CoverageThreshold)
	}
	if c.ParallelWindow <= 0 {
		return fmt.Errorf("parallel_window must be positive, got %v", c.ParallelWindow)
	}
	if c.PhaseTimeout <= 0 {
		return fmt.Errorf("phase_timeout must be positive, got %v", c.PhaseTimeout)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of trace, debug, info, warn, error; got %q", c.LogLevel)
	}
	for _, p := range c.ValidatedPhases {
		if !validatablePhases[p] {
			return fmt.Errorf("validated_phases entry %q is not a validatable phase (integrate, review)", p)
		}
	}
	for _, g := range c.Gates {
		if g.Name == "" {
			return fmt.Errorf("every gate needs a name")
		}
		if len(g.Command) == 0 {
			return fmt.Errorf("gate %q needs a command", g.Name)
		}
	}
	return nil
}

// validatablePhases are the topology positions the orchestrator wraps in
// the validation loop. Plan and the parallel implement group run before
// artifacts converge, so gates cannot apply to them.
var validatablePhases = map[string]bool{
	"integrate": true,
	"review":    true,
}
