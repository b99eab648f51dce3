package models

import "time"

// PhaseStatus is the status recorded in a manifest entry.
type PhaseStatus string

const (
	PhaseStarted PhaseStatus = "started" // Phase has begun executing
	PhaseSuccess PhaseStatus = "success" // Phase finished successfully
	PhaseFailure PhaseStatus = "failure" // Phase finished with an error or timeout
)

// IsValid reports whether s is a recognized phase status value.
func (s PhaseStatus) IsValid() bool {
	switch s {
	case PhaseStarted, PhaseSuccess, PhaseFailure:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s ends a phase's lifecycle in the manifest.
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseSuccess || s == PhaseFailure
}

// ManifestEntry is one immutable phase lifecycle event. Entries are
// append-only and never rewritten; the manifest is the single source of
// truth for phase timing and for proving that the parallel group actually
// ran concurrently.
//
// ExitCode and DurationSec are present only on terminal entries.
type ManifestEntry struct {
	RunID       string      `json:"run_id"`
	Phase       string      `json:"phase"`
	Status      PhaseStatus `json:"status"`
	ExitCode    *int        `json:"exit_code,omitempty"`
	DurationSec *int        `json:"duration_sec,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
