package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/cadence/internal/models"
)

func TestConsoleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, true)

	l.LogPhaseStart("plan")
	l.LogPhaseComplete(models.PhaseResult{Phase: "plan", Status: models.PhaseSuccess, Duration: 3 * time.Second})
	l.LogGroupStart([]string{"implement-core", "implement-tests"})
	l.LogGroupComplete(10 * time.Second)
	l.LogSummary(models.RunResult{
		Feature:   "test_feature",
		Completed: true,
		Duration:  20 * time.Second,
		Phases:    []models.PhaseResult{{Phase: "plan"}},
	})

	out := buf.String()
	for _, want := range []string{"started plan", "success plan", "parallel", "Run Summary: test_feature", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	// Not a TTY, so no escape codes.
	if strings.Contains(out, "\x1b[") {
		t.Error("Output must not contain color escapes for a non-TTY writer")
	}
}

func TestConsoleLoggerFailedSummary(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, true)

	l.LogSummary(models.RunResult{
		Feature:   "broken",
		Completed: false,
		Validation: &models.ValidationOutcome{
			Passed:   false,
			Attempts: 3,
		},
		FailedPhases: []models.PhaseResult{
			{Phase: "integrate", Status: models.PhaseFailure, Diagnostics: "gate failed"},
		},
	})

	out := buf.String()
	if !strings.Contains(out, "failed") {
		t.Errorf("Failed summary missing status:\n%s", out)
	}
	if !strings.Contains(out, "exhausted after 3 attempts") {
		t.Errorf("Summary missing validation verdict:\n%s", out)
	}
	if !strings.Contains(out, "integrate") {
		t.Errorf("Summary missing failed phase:\n%s", out)
	}
}

func TestFileLoggerWritesRunLog(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info", "0123456789abcdef")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer fl.Close()

	fl.LogPhaseStart("plan")
	fl.LogPhaseComplete(models.PhaseResult{Phase: "plan", Status: models.PhaseSuccess, Duration: time.Second})

	data, err := os.ReadFile(fl.Path())
	if err != nil {
		t.Fatalf("Failed to read run log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "phase plan started") {
		t.Errorf("Run log missing phase start:\n%s", content)
	}
	if !strings.Contains(content, "phase plan success") {
		t.Errorf("Run log missing phase completion:\n%s", content)
	}

	// latest.log points at the run file.
	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log symlink missing: %v", err)
	}
	if target != filepath.Base(fl.Path()) {
		t.Errorf("latest.log -> %q, want %q", target, filepath.Base(fl.Path()))
	}
}

func TestFileLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "warn", "run")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer fl.Close()

	fl.LogDebug("hidden detail")
	fl.LogInfo("hidden info")
	fl.LogWarn("visible warning")
	fl.LogError("visible error")

	data, _ := os.ReadFile(fl.Path())
	content := string(data)
	if strings.Contains(content, "hidden") {
		t.Errorf("Messages below warn must be filtered:\n%s", content)
	}
	if !strings.Contains(content, "visible warning") || !strings.Contains(content, "visible error") {
		t.Errorf("Warn and error messages must pass the filter:\n%s", content)
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMulti(NewConsoleLogger(&a, true), NewConsoleLogger(&b, true), nil)

	multi.LogPhaseStart("plan")
	if !strings.Contains(a.String(), "plan") || !strings.Contains(b.String(), "plan") {
		t.Error("Multi must fan events out to every target")
	}
}
