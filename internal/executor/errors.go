package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/cadence/internal/models"
)

// PhaseError represents an error that occurred while executing a phase.
type PhaseError struct {
	Phase     string    // Phase identifier
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewPhaseError creates a PhaseError with the current timestamp.
func NewPhaseError(phase, msg string, err error) *PhaseError {
	return &PhaseError{
		Phase:     phase,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("phase %s: %s", e.Phase, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a phase exceeding its execution deadline.
type TimeoutError struct {
	Phase   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("phase %s: timeout after %v", e.Phase, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded so errors.Is matches.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// ExecutorError represents the opaque phase executor reporting failure
// outside the validation loop's concern, e.g. an infrastructure error.
// It is fatal; retry policy, if any, belongs to the executor itself.
type ExecutorError struct {
	Phase       string
	Diagnostics string
	Err         error
}

// Error implements the error interface.
func (e *ExecutorError) Error() string {
	msg := fmt.Sprintf("phase %s: executor failed", e.Phase)
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the executor itself broke, as opposed to the
// phase running to completion and reporting failure. Infrastructure
// faults carry an underlying error; clean failures carry diagnostics
// only.
func (e *ExecutorError) Fatal() bool {
	return e.Err != nil
}

// ExhaustedValidationError is returned when the validation loop consumes
// its full attempt budget without every gate passing. It carries the final
// attempt's complete failure set so the caller sees every remaining
// problem, not just the first.
type ExhaustedValidationError struct {
	Phase    string
	Attempts int
	Failures []models.GateFailure
}

// Error implements the error interface.
func (e *ExhaustedValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("phase %s: validation exhausted after %d attempts", e.Phase, e.Attempts))
	for _, f := range e.Failures {
		sb.WriteString(fmt.Sprintf("\n  - gate %s (%s): %s", f.Gate, f.Category, firstLine(f.Report)))
	}
	return sb.String()
}

// GroupError aggregates terminal failures from the parallel phase group.
// The fan-in barrier collects every member's result before failing, so no
// failure masks another.
type GroupError struct {
	Phases []*PhaseError
}

// Error implements the error interface.
func (e *GroupError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("parallel group failed: %d phase(s) failed", len(e.Phases)))
	for _, pe := range e.Phases {
		sb.WriteString(fmt.Sprintf("\n  - %s", pe.Error()))
	}
	return sb.String()
}

// Unwrap returns the member errors for errors.Is/As traversal.
func (e *GroupError) Unwrap() []error {
	if len(e.Phases) == 0 {
		return nil
	}
	errs := make([]error, len(e.Phases))
	for i, pe := range e.Phases {
		errs[i] = pe
	}
	return errs
}

// IsTimeout checks if the error is or wraps a TimeoutError or
// context.DeadlineExceeded.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsExhaustedValidation checks if the error is or wraps an
// ExhaustedValidationError.
func IsExhaustedValidation(err error) bool {
	var ee *ExhaustedValidationError
	return errors.As(err, &ee)
}

// IsExecutorError checks if the error is or wraps an ExecutorError.
func IsExecutorError(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee)
}

// IsFatalExecutorError checks if the error is or wraps an ExecutorError
// representing an infrastructure fault rather than a failing phase.
func IsFatalExecutorError(err error) bool {
	var ee *ExecutorError
	return errors.As(err, &ee) && ee.Fatal()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
