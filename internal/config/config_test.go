package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.CoverageThreshold != 70 {
		t.Errorf("CoverageThreshold = %v, want 70", cfg.CoverageThreshold)
	}
	if cfg.ParallelWindow != 5*time.Second {
		t.Errorf("ParallelWindow = %v, want 5s", cfg.ParallelWindow)
	}
	if len(cfg.Gates) != 3 {
		t.Errorf("Gate count = %d, want 3", len(cfg.Gates))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
max_attempts: 5
coverage_threshold: 85
log_level: debug
phase_timeout: 30m
validated_phases: [integrate, review]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Seed write failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.CoverageThreshold != 85 {
		t.Errorf("CoverageThreshold = %v, want 85", cfg.CoverageThreshold)
	}
	if cfg.PhaseTimeout != 30*time.Minute {
		t.Errorf("PhaseTimeout = %v, want 30m", cfg.PhaseTimeout)
	}
	if len(cfg.ValidatedPhases) != 2 {
		t.Errorf("ValidatedPhases = %v, want two entries", cfg.ValidatedPhases)
	}
	// Unset fields keep defaults.
	if cfg.LogDir != filepath.Join(".cadence", "logs") {
		t.Errorf("LogDir = %q, want default", cfg.LogDir)
	}
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_attempts: [not an int"), 0644); err != nil {
		t.Fatalf("Seed write failed: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()

	attempts := 7
	timeout := 45 * time.Minute
	dryRun := true
	cfg.MergeWithFlags(nil, &attempts, nil, &timeout, nil, nil, nil, &dryRun)

	if cfg.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want flag value 7", cfg.MaxAttempts)
	}
	if cfg.PhaseTimeout != 45*time.Minute {
		t.Errorf("PhaseTimeout = %v, want 45m", cfg.PhaseTimeout)
	}
	if !cfg.DryRun {
		t.Error("DryRun flag must override config")
	}
	// Untouched fields keep their values.
	if cfg.CoverageThreshold != 70 {
		t.Errorf("CoverageThreshold = %v, want untouched default", cfg.CoverageThreshold)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"negative coverage", func(c *Config) { c.CoverageThreshold = -1 }},
		{"coverage over 100", func(c *Config) { c.CoverageThreshold = 101 }},
		{"zero window", func(c *Config) { c.ParallelWindow = 0 }},
		{"zero timeout", func(c *Config) { c.PhaseTimeout = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"unnamed gate", func(c *Config) { c.Gates = []GateConfig{{Command: []string{"x"}}} }},
		{"commandless gate", func(c *Config) { c.Gates = []GateConfig{{Name: "style"}} }},
		{"unvalidatable phase", func(c *Config) { c.ValidatedPhases = []string{"plan"} }},
		{"unknown validated phase", func(c *Config) { c.ValidatedPhases = []string{"integrate", "deploy"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidateAcceptsBothValidatablePhases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValidatedPhases = []string{"integrate", "review"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed for integrate+review: %v", err)
	}
}
