package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/harrison/cadence/internal/models"
)

func TestParseCoveragePercent(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		want    float64
		wantErr bool
	}{
		{"go test style", "coverage: 82.4% of statements", 82.4, false},
		{"integer total", "TOTAL 75%", 75, false},
		{"spaced percent", "lines: 70.0 %", 70, false},
		{"no percentage", "all tests passed", 0, true},
		{"empty", "", 0, true},
		{"words only", "coverage looks fine", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoveragePercent(tt.report)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCoveragePercent(%q) = %v, want error", tt.report, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoveragePercent(%q) failed: %v", tt.report, err)
			}
			if got != tt.want {
				t.Errorf("ParseCoveragePercent(%q) = %v, want %v", tt.report, got, tt.want)
			}
		})
	}
}

func TestCoverageGateEnforcesThreshold(t *testing.T) {
	inner := &fakeGate{name: "coverage", alwaysOK: true, report: "coverage: 65.0% of statements"}
	gate := &CoverageGate{Inner: inner, Threshold: 70}

	report, err := gate.Check(context.Background(), "/tmp/artifact")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Passed {
		t.Error("Coverage below threshold must fail the gate")
	}
	if !strings.Contains(report.ReportText, "below threshold") {
		t.Errorf("Report %q should explain the threshold failure", report.ReportText)
	}
}

func TestCoverageGatePassesAtThreshold(t *testing.T) {
	inner := &fakeGate{name: "coverage", alwaysOK: true, report: "coverage: 70.0% of statements"}
	gate := &CoverageGate{Inner: inner, Threshold: 70}

	report, err := gate.Check(context.Background(), "/tmp/artifact")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !report.Passed {
		t.Error("Coverage meeting the threshold must pass")
	}
}

func TestCoverageGateFailsOnUnparseableOutput(t *testing.T) {
	// Unparseable coverage output is a failing gate, never a pass.
	inner := &fakeGate{name: "coverage", alwaysOK: true, report: "tests ok, no number here"}
	gate := &CoverageGate{Inner: inner, Threshold: 70}

	report, err := gate.Check(context.Background(), "/tmp/artifact")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Passed {
		t.Error("Unparseable coverage output must fail, not pass by default")
	}
}

func TestCoverageGatePropagatesInnerFailure(t *testing.T) {
	inner := &fakeGate{name: "coverage", passAfter: 1000, report: "compile error"}
	gate := &CoverageGate{Inner: inner, Threshold: 70}

	report, err := gate.Check(context.Background(), "/tmp/artifact")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Passed {
		t.Error("Inner gate failure must propagate")
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		gate string
		want models.FailureCategory
	}{
		{"style", models.FailureStyle},
		{"lint", models.FailureStyle},
		{"tests", models.FailureTests},
		{"coverage", models.FailureCoverage},
		{"custom-gate", models.FailureUnknown},
	}
	for _, tt := range tests {
		if got := classifyFailure(tt.gate, "", nil); got != tt.want {
			t.Errorf("classifyFailure(%q) = %q, want %q", tt.gate, got, tt.want)
		}
	}
}
