// Package logger provides console and file logging for orchestrator runs.
// The console logger colorizes output when attached to a TTY; the file
// logger writes timestamped per-run logs with a latest.log symlink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/cadence/internal/models"
)

// colorScheme defines consistent colors for console output.
// Green: success, red: failure, yellow: warnings, cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme(disabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
	if disabled {
		s.success.DisableColor()
		s.fail.DisableColor()
		s.warn.DisableColor()
		s.label.DisableColor()
	}
	return s
}

// ConsoleLogger renders orchestrator progress to a terminal. It implements
// the executor.Logger interface.
type ConsoleLogger struct {
	writer io.Writer
	scheme *colorScheme
}

// NewConsoleLogger creates a console logger writing to w. Color is enabled
// only when w is a TTY and noColor is false.
func NewConsoleLogger(w io.Writer, noColor bool) *ConsoleLogger {
	disabled := noColor
	if f, ok := w.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			disabled = true
		}
	} else {
		disabled = true
	}
	return &ConsoleLogger{
		writer: w,
		scheme: newColorScheme(disabled),
	}
}

func (l *ConsoleLogger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// LogPhaseStart logs the start of a phase execution.
func (l *ConsoleLogger) LogPhaseStart(phase string) {
	fmt.Fprintf(l.writer, "[%s] %s %s\n", l.timestamp(), l.scheme.label.Sprint("started"), phase)
}

// LogPhaseComplete logs a phase's terminal outcome.
func (l *ConsoleLogger) LogPhaseComplete(result models.PhaseResult) {
	verdict := l.scheme.success.Sprint("success")
	if result.Failed() {
		verdict = l.scheme.fail.Sprint("failure")
	}
	fmt.Fprintf(l.writer, "[%s] %s %s (%s)\n", l.timestamp(), verdict, result.Phase, result.Duration.Round(time.Second))
	if result.Failed() && result.Err != nil {
		fmt.Fprintf(l.writer, "    %s\n", firstLine(result.Err.Error()))
	}
}

// LogGroupStart logs the fan-out of the parallel phase group.
func (l *ConsoleLogger) LogGroupStart(phases []string) {
	fmt.Fprintf(l.writer, "[%s] %s %s\n", l.timestamp(), l.scheme.label.Sprint("parallel"), strings.Join(phases, ", "))
}

// LogGroupComplete logs the fan-in barrier being satisfied.
func (l *ConsoleLogger) LogGroupComplete(duration time.Duration) {
	fmt.Fprintf(l.writer, "[%s] parallel group complete in %s\n", l.timestamp(), duration.Round(time.Second))
}

// LogSummary logs the run summary with final statistics.
func (l *ConsoleLogger) LogSummary(result models.RunResult) {
	fmt.Fprintf(l.writer, "\nRun Summary: %s\n", result.Feature)

	status := l.scheme.success.Sprint("completed")
	if !result.Completed {
		status = l.scheme.fail.Sprint("failed")
	}
	fmt.Fprintf(l.writer, "  Status: %s\n", status)
	fmt.Fprintf(l.writer, "  Phases: %d (%d failed)\n", len(result.Phases), len(result.FailedPhases))
	fmt.Fprintf(l.writer, "  Duration: %s\n", result.Duration.Round(time.Second))

	if result.Validation != nil {
		verdict := l.scheme.success.Sprint("passed")
		if !result.Validation.Passed {
			verdict = l.scheme.fail.Sprintf("exhausted after %d attempts", result.Validation.Attempts)
		}
		fmt.Fprintf(l.writer, "  Validation: %s\n", verdict)
	}

	for _, pr := range result.FailedPhases {
		fmt.Fprintf(l.writer, "  - %s: %s\n", pr.Phase, firstLine(errText(pr)))
	}
}

func errText(pr models.PhaseResult) string {
	if pr.Err != nil {
		return pr.Err.Error()
	}
	return pr.Diagnostics
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
