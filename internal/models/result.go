package models

import "time"

// FailureCategory classifies why a validation gate failed.
type FailureCategory string

const (
	FailureStyle    FailureCategory = "style"    // Style/syntax gate rejected the artifact
	FailureTests    FailureCategory = "tests"    // Unit-test gate rejected the artifact
	FailureCoverage FailureCategory = "coverage" // Coverage below threshold or unparseable
	FailureTimeout  FailureCategory = "timeout"  // Gate exceeded its deadline
	FailureUnknown  FailureCategory = "unknown"  // Gate failed for an unclassified reason
)

// GateFailure records a single gate's failure within a validation attempt.
type GateFailure struct {
	Gate     string          // Gate name (e.g. "style", "tests", "coverage")
	Category FailureCategory // Classified failure category
	Report   string          // Diagnostic text returned by the gate
}

// ValidationOutcome is the result of running the bounded validation loop.
// When Passed is false and Attempts equals the configured maximum, the loop
// exhausted its retry budget; LastFailures holds the final attempt's
// failures so callers see every remaining problem, not just the first.
type ValidationOutcome struct {
	Passed          bool
	Attempts        int
	LastFailures    []GateFailure
	CoveragePercent float64 // Last parsed coverage value, 0 if never parsed
}

// PhaseResult is the outcome of executing a single phase.
type PhaseResult struct {
	Phase       string
	Status      PhaseStatus // success or failure, never started
	ExitCode    int
	Duration    time.Duration
	Artifacts   []string // Paths produced or modified by the phase
	Diagnostics string   // Executor-supplied diagnostic text
	Err         error
	Validation  *ValidationOutcome // Set only for validation-wrapped phases
}

// Failed reports whether the phase ended in failure.
func (r PhaseResult) Failed() bool {
	return r.Status == PhaseFailure || r.Err != nil
}

// RunResult aggregates the outcome of one orchestration run.
type RunResult struct {
	Feature      string
	RunID        string
	Completed    bool
	Duration     time.Duration
	Phases       []PhaseResult // All phase results in completion order
	FailedPhases []PhaseResult
	FilesChanged []string
	Validation   *ValidationOutcome // Last validation-wrapped phase's outcome
}
