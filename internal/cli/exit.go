package cli

import (
	"errors"

	"github.com/harrison/cadence/internal/executor"
	"github.com/harrison/cadence/internal/identifier"
)

// Process exit codes. The distinct codes let calling scripts tell a
// refused name from a run that executed but did not converge.
const (
	ExitOK                 = 0
	ExitFailure            = 1 // Generic failure (bad flags, config, IO)
	ExitIdentifierRejected = 2 // Feature name refused by a security check
	ExitValidationExhaust  = 3 // Validation retry budget exhausted
	ExitExecutorFatal      = 4 // Phase executor infrastructure failure
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var rejection *identifier.Rejection
	if errors.As(err, &rejection) {
		return ExitIdentifierRejected
	}
	if executor.IsExhaustedValidation(err) {
		return ExitValidationExhaust
	}

	// A failed parallel group is a fatal executor outcome when any member
	// died of infrastructure causes rather than a normal failing phase.
	var group *executor.GroupError
	if errors.As(err, &group) {
		for _, pe := range group.Phases {
			if executor.IsFatalExecutorError(pe) || executor.IsTimeout(pe) {
				return ExitExecutorFatal
			}
		}
		return ExitFailure
	}
	if executor.IsFatalExecutorError(err) || executor.IsTimeout(err) {
		return ExitExecutorFatal
	}

	return ExitFailure
}
