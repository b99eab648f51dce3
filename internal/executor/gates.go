package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/harrison/cadence/internal/models"
)

// GateReport is what one validation gate returns.
type GateReport struct {
	Passed     bool
	ReportText string
}

// Gate is a single pass/fail check applied to an artifact during
// validation. Gates run in order and the loop stops at the first failure
// within an attempt.
type Gate interface {
	Name() string
	Check(ctx context.Context, artifact string) (*GateReport, error)
}

// SubprocessGate invokes an external command as a gate. The artifact path
// is appended to the command; exit code zero means passed and stdout is
// the report text.
type SubprocessGate struct {
	GateName string
	Command  []string
}

// Name returns the gate's configured name.
func (g *SubprocessGate) Name() string {
	return g.GateName
}

// Check runs the gate command against the artifact.
func (g *SubprocessGate) Check(ctx context.Context, artifact string) (*GateReport, error) {
	if len(g.Command) == 0 {
		return nil, fmt.Errorf("gate %s has no command", g.GateName)
	}

	args := append(append([]string{}, g.Command[1:]...), artifact)
	cmd := exec.CommandContext(ctx, g.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	report := stdout.String()
	if report == "" {
		report = stderr.String()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return &GateReport{Passed: false, ReportText: report}, nil
		}
		return nil, fmt.Errorf("gate %s failed to run: %w", g.GateName, runErr)
	}
	return &GateReport{Passed: true, ReportText: report}, nil
}

// coveragePattern extracts a percentage value from gate report text, e.g.
// "coverage: 82.4% of statements" or "TOTAL 75%".
var coveragePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// ParseCoveragePercent extracts the coverage percentage from report text.
// Unparseable output is an error; the coverage gate treats it as a failing
// gate, never as a pass-by-default.
func ParseCoveragePercent(report string) (float64, error) {
	m := coveragePattern.FindStringSubmatch(report)
	if m == nil {
		return 0, fmt.Errorf("no coverage percentage found in report")
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable coverage value %q: %w", m[1], err)
	}
	return value, nil
}

// CoverageGate wraps an inner gate and additionally requires the report
// text to contain a parseable percentage at or above Threshold.
type CoverageGate struct {
	Inner     Gate
	Threshold float64
}

// Name returns the inner gate's name.
func (g *CoverageGate) Name() string {
	return g.Inner.Name()
}

// Check runs the inner gate, then enforces the threshold on its report.
func (g *CoverageGate) Check(ctx context.Context, artifact string) (*GateReport, error) {
	report, err := g.Inner.Check(ctx, artifact)
	if err != nil {
		return nil, err
	}
	if !report.Passed {
		return report, nil
	}

	value, err := ParseCoveragePercent(report.ReportText)
	if err != nil {
		return &GateReport{
			Passed:     false,
			ReportText: fmt.Sprintf("%v\n%s", err, report.ReportText),
		}, nil
	}
	if value < g.Threshold {
		return &GateReport{
			Passed:     false,
			ReportText: fmt.Sprintf("coverage %.1f%% below threshold %.1f%%\n%s", value, g.Threshold, report.ReportText),
		}, nil
	}
	return report, nil
}

// classifyFailure maps a failed gate to a failure category. The gate name
// is the parse contract; diagnostic text is only consulted for timeouts.
func classifyFailure(gateName, report string, err error) models.FailureCategory {
	if IsTimeout(err) {
		return models.FailureTimeout
	}
	switch strings.ToLower(gateName) {
	case "style", "lint", "syntax":
		return models.FailureStyle
	case "tests", "test", "unit":
		return models.FailureTests
	case "coverage":
		return models.FailureCoverage
	default:
		return models.FailureUnknown
	}
}
