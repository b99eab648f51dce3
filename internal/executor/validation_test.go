package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/harrison/cadence/internal/models"
)

// fakeGate counts invocations and fails until passAfter attempts have
// been observed.
type fakeGate struct {
	name      string
	calls     int
	alwaysOK  bool
	passAfter int // Pass once calls > passAfter; ignored when alwaysOK
	report    string
}

func (g *fakeGate) Name() string { return g.name }

func (g *fakeGate) Check(ctx context.Context, artifact string) (*GateReport, error) {
	g.calls++
	if g.alwaysOK || g.calls > g.passAfter {
		return &GateReport{Passed: true, ReportText: g.report}, nil
	}
	return &GateReport{Passed: false, ReportText: g.report}, nil
}

func TestValidationAllGatesPassFirstAttempt(t *testing.T) {
	gates := []Gate{
		&fakeGate{name: "style", alwaysOK: true},
		&fakeGate{name: "tests", alwaysOK: true},
		&fakeGate{name: "coverage", alwaysOK: true, report: "coverage: 84.2% of statements"},
	}

	loop := NewValidationLoop(3, nil)
	outcome, err := loop.Run(context.Background(), "integrate", "/tmp/artifact", gates)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Passed {
		t.Error("Expected passed outcome")
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.CoveragePercent != 84.2 {
		t.Errorf("CoveragePercent = %v, want 84.2", outcome.CoveragePercent)
	}
}

func TestValidationFirstGateAlwaysFails(t *testing.T) {
	first := &fakeGate{name: "style", passAfter: 1000, report: "unused import"}
	second := &fakeGate{name: "tests", alwaysOK: true}

	loop := NewValidationLoop(3, nil)
	outcome, err := loop.Run(context.Background(), "integrate", "/tmp/artifact", []Gate{first, second})

	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if !IsExhaustedValidation(err) {
		t.Fatalf("Expected ExhaustedValidationError, got %T", err)
	}
	if outcome.Passed {
		t.Error("Outcome must not be passed")
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want maxAttempts 3", outcome.Attempts)
	}
	// Expensive gates past the first failure must never run.
	if second.calls != 0 {
		t.Errorf("Second gate invoked %d times, want 0", second.calls)
	}
	if first.calls != 3 {
		t.Errorf("First gate invoked %d times, want once per attempt", first.calls)
	}

	var exhausted *ExhaustedValidationError
	if !errors.As(err, &exhausted) {
		t.Fatal("errors.As must find ExhaustedValidationError")
	}
	if len(exhausted.Failures) != 1 || exhausted.Failures[0].Gate != "style" {
		t.Errorf("Exhaustion must carry the last attempt's failures, got %+v", exhausted.Failures)
	}
	if exhausted.Failures[0].Category != models.FailureStyle {
		t.Errorf("Category = %q, want style", exhausted.Failures[0].Category)
	}
}

func TestValidationRetryReRunsAllGates(t *testing.T) {
	// Second gate fails once; the retry must re-run the first gate too.
	first := &fakeGate{name: "style", alwaysOK: true}
	second := &fakeGate{name: "tests", passAfter: 1}

	loop := NewValidationLoop(3, nil)
	outcome, err := loop.Run(context.Background(), "integrate", "/tmp/artifact", []Gate{first, second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Passed || outcome.Attempts != 2 {
		t.Errorf("Outcome = %+v, want pass on attempt 2", outcome)
	}
	if first.calls != 2 {
		t.Errorf("First gate invoked %d times, want 2 (each attempt starts from the top)", first.calls)
	}
}

type countingRemediator struct {
	calls int
}

func (r *countingRemediator) Remediate(ctx context.Context, artifact string, failures []models.GateFailure) error {
	r.calls++
	return nil
}

func TestValidationRemediatesBetweenAttempts(t *testing.T) {
	gate := &fakeGate{name: "tests", passAfter: 2}
	remediator := &countingRemediator{}

	loop := NewValidationLoop(5, remediator)
	outcome, err := loop.Run(context.Background(), "integrate", "/tmp/artifact", []Gate{gate})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
	// Remediation runs between attempts, never after the final one.
	if remediator.calls != 2 {
		t.Errorf("Remediator invoked %d times, want 2", remediator.calls)
	}
}

func TestValidationNoRemediationAfterFinalAttempt(t *testing.T) {
	gate := &fakeGate{name: "tests", passAfter: 1000}
	remediator := &countingRemediator{}

	loop := NewValidationLoop(2, remediator)
	_, err := loop.Run(context.Background(), "integrate", "/tmp/artifact", []Gate{gate})
	if !IsExhaustedValidation(err) {
		t.Fatalf("Expected exhaustion, got %v", err)
	}
	if remediator.calls != 1 {
		t.Errorf("Remediator invoked %d times, want 1 (between the two attempts only)", remediator.calls)
	}
}

func TestValidationCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gate := &fakeGate{name: "style", alwaysOK: true}
	loop := NewValidationLoop(3, nil)
	_, err := loop.Run(ctx, "integrate", "/tmp/artifact", []Gate{gate})
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}
