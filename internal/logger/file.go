package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/cadence/internal/models"
)

// FileLogger logs orchestrator events to a timestamped per-run log file
// under the log directory and maintains a latest.log symlink pointing to
// the most recent run. It is thread-safe, implements the executor.Logger
// interface, and filters messages by log level.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to logDir with the given
// level. The directory is created if missing; the run file is named
// run-<timestamp>-<runID>.log.
func NewFileLogger(logDir, logLevel, runID string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	shortID := runID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s-%s.log", timestamp, shortID))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.write(fmt.Sprintf("=== Cadence Run Log (run %s) ===\n", runID))
	logger.write(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return logger, nil
}

// Close closes the underlying run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.runLog.Close()
}

// Path returns the run log file location.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func normalizeLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "error":
		return strings.ToLower(level)
	default:
		return "info"
	}
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return 0
	case "debug":
		return 1
	case "info":
		return 2
	case "warn":
		return 3
	case "error":
		return 4
	default:
		return 2
	}
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) write(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.runLog.WriteString(message)
}

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

// LogPhaseStart logs the start of a phase at INFO level.
func (fl *FileLogger) LogPhaseStart(phase string) {
	fl.LogInfo(fmt.Sprintf("phase %s started", phase))
}

// LogPhaseComplete logs a phase's terminal outcome at INFO level.
func (fl *FileLogger) LogPhaseComplete(result models.PhaseResult) {
	status := "success"
	if result.Failed() {
		status = "failure"
	}
	fl.LogInfo(fmt.Sprintf("phase %s %s: exit %d, duration %.1fs", result.Phase, status, result.ExitCode, result.Duration.Seconds()))
	if result.Failed() && result.Err != nil {
		fl.LogError(fmt.Sprintf("phase %s: %v", result.Phase, result.Err))
	}
}

// LogGroupStart logs the fan-out of the parallel group at INFO level.
func (fl *FileLogger) LogGroupStart(phases []string) {
	fl.LogInfo(fmt.Sprintf("parallel group started: %s", strings.Join(phases, ", ")))
}

// LogGroupComplete logs the fan-in barrier being satisfied at INFO level.
func (fl *FileLogger) LogGroupComplete(duration time.Duration) {
	fl.LogInfo(fmt.Sprintf("parallel group complete: duration %.1fs", duration.Seconds()))
}

// LogSummary logs the run summary at INFO level.
func (fl *FileLogger) LogSummary(result models.RunResult) {
	status := "completed"
	if !result.Completed {
		status = "failed"
	}
	fl.write("\n=== Run Summary ===\n")
	fl.write(fmt.Sprintf("Feature: %s\n", result.Feature))
	fl.write(fmt.Sprintf("Status: %s\n", status))
	fl.write(fmt.Sprintf("Phases: %d (%d failed)\n", len(result.Phases), len(result.FailedPhases)))
	fl.write(fmt.Sprintf("Duration: %.1fs\n", result.Duration.Seconds()))
	for _, pr := range result.FailedPhases {
		fl.write(fmt.Sprintf("  - %s: %s\n", pr.Phase, firstLine(errText(pr))))
	}
}
