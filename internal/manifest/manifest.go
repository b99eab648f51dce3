// Package manifest implements the append-only phase execution log. One
// NDJSON file per feature run records a started entry and a terminal entry
// for every phase; the file is the single source of truth for phase timing
// and for proving that the parallel group actually ran concurrently.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/cadence/internal/filelock"
	"github.com/harrison/cadence/internal/models"
)

// Log appends phase lifecycle entries for one feature run. It is safe for
// concurrent use: each append takes a short-lived advisory lock covering
// exactly one entry write.
type Log struct {
	path  string
	runID string
}

// CorruptError reports an unreadable or unparseable manifest line. It is
// never repaired silently; a corrupt manifest is fatal to the consumer.
type CorruptError struct {
	Path string
	Line int
	Err  error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("manifest %s corrupt at line %d: %v", e.Path, e.Line, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Open prepares the manifest log for a feature run. The file lives at
// dir/<feature>.ndjson and is created on first append. runID correlates
// every entry of one run.
func Open(dir, feature, runID string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	return &Log{
		path:  filepath.Join(dir, feature+".ndjson"),
		runID: runID,
	}, nil
}

// Path returns the manifest file location.
func (l *Log) Path() string {
	return l.path
}

// RunID returns the run identifier stamped on every appended entry.
func (l *Log) RunID() string {
	return l.runID
}

// Started appends a started entry for phase.
func (l *Log) Started(phase string) error {
	return l.append(models.ManifestEntry{
		RunID:     l.runID,
		Phase:     phase,
		Status:    models.PhaseStarted,
		Timestamp: time.Now().UTC(),
	})
}

// Finished appends a terminal entry for phase. status must be terminal;
// exit code and duration are recorded only here, never on started entries.
func (l *Log) Finished(phase string, status models.PhaseStatus, exitCode int, duration time.Duration) error {
	if !status.IsTerminal() {
		return fmt.Errorf("manifest: %q is not a terminal status", status)
	}
	seconds := int(duration.Round(time.Second).Seconds())
	return l.append(models.ManifestEntry{
		RunID:       l.runID,
		Phase:       phase,
		Status:      status,
		ExitCode:    &exitCode,
		DurationSec: &seconds,
		Timestamp:   time.Now().UTC(),
	})
}

func (l *Log) append(entry models.ManifestEntry) error {
	if !entry.Status.IsValid() {
		return fmt.Errorf("manifest: unrecognized status %q", entry.Status)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("manifest: failed to encode entry: %w", err)
	}
	return filelock.AppendLine(l.path, data)
}

// ReadAll returns every entry in file order, which is chronological order
// since appends are serialized. A line that fails to parse yields a
// CorruptError; entries are never skipped.
func (l *Log) ReadAll() ([]models.ManifestEntry, error) {
	return ReadFile(l.path)
}

// ReadFile parses a manifest file. A missing file yields an empty slice.
func ReadFile(path string) ([]models.ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	var entries []models.ManifestEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry models.ManifestEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, &CorruptError{Path: path, Line: lineNo, Err: err}
		}
		if !entry.Status.IsValid() {
			return nil, &CorruptError{Path: path, Line: lineNo, Err: fmt.Errorf("unrecognized status %q", entry.Status)}
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, &CorruptError{Path: path, Line: lineNo, Err: err}
	}
	return entries, nil
}
