package executor

import (
	"context"
	"strings"

	"github.com/harrison/cadence/internal/models"
)

// Remediator is the external step assumed to modify the artifact between
// validation attempts. It is an opaque collaborator; the loop only waits
// for it to return.
type Remediator interface {
	Remediate(ctx context.Context, artifact string, failures []models.GateFailure) error
}

// ValidationLoop runs an ordered gate sequence against an artifact,
// retrying up to MaxAttempts. Within one attempt the loop stops at the
// first failing gate; a fresh attempt re-runs every gate from the top.
type ValidationLoop struct {
	MaxAttempts int
	Remediator  Remediator // Optional; nil skips the remediation step
}

// NewValidationLoop creates a loop with the given attempt budget.
func NewValidationLoop(maxAttempts int, remediator Remediator) *ValidationLoop {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ValidationLoop{
		MaxAttempts: maxAttempts,
		Remediator:  remediator,
	}
}

// Run drives the bounded validation loop for one artifact. Individual gate
// failures within the attempt budget are absorbed here and never surfaced;
// the caller sees either a passing outcome or an ExhaustedValidationError
// carrying the final attempt's full failure set.
func (l *ValidationLoop) Run(ctx context.Context, phase, artifact string, gates []Gate) (*models.ValidationOutcome, error) {
	outcome := &models.ValidationOutcome{}

	for attempt := 1; attempt <= l.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		failures, coverage, err := l.runAttempt(ctx, artifact, gates)
		if err != nil {
			return outcome, NewPhaseError(phase, "validation gate error", err)
		}
		if coverage > 0 {
			outcome.CoveragePercent = coverage
		}

		if len(failures) == 0 {
			outcome.Passed = true
			outcome.LastFailures = nil
			return outcome, nil
		}
		outcome.LastFailures = failures

		if attempt == l.MaxAttempts {
			break
		}
		if l.Remediator != nil {
			if err := l.Remediator.Remediate(ctx, artifact, failures); err != nil {
				return outcome, NewPhaseError(phase, "remediation failed", err)
			}
		}
	}

	return outcome, &ExhaustedValidationError{
		Phase:    phase,
		Attempts: outcome.Attempts,
		Failures: outcome.LastFailures,
	}
}

// runAttempt runs gates in order, stopping at the first failure. It
// returns the attempt's failures (at most one, since the attempt
// short-circuits) and the last parsed coverage value, if any.
func (l *ValidationLoop) runAttempt(ctx context.Context, artifact string, gates []Gate) ([]models.GateFailure, float64, error) {
	var coverage float64

	for _, gate := range gates {
		if err := ctx.Err(); err != nil {
			return nil, coverage, err
		}

		report, err := gate.Check(ctx, artifact)
		if err != nil {
			if IsTimeout(err) {
				return []models.GateFailure{{
					Gate:     gate.Name(),
					Category: models.FailureTimeout,
					Report:   err.Error(),
				}}, coverage, nil
			}
			return nil, coverage, err
		}

		if strings.EqualFold(gate.Name(), "coverage") {
			if value, perr := ParseCoveragePercent(report.ReportText); perr == nil {
				coverage = value
			}
		}

		if !report.Passed {
			return []models.GateFailure{{
				Gate:     gate.Name(),
				Category: classifyFailure(gate.Name(), report.ReportText, nil),
				Report:   report.ReportText,
			}}, coverage, nil
		}
	}

	return nil, coverage, nil
}
