// Package report builds human-readable run reports from manifest entries
// and run outcomes.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/harrison/cadence/internal/manifest"
	"github.com/harrison/cadence/internal/models"
)

// Report is a rendered view of one orchestration run: the per-phase
// timeline, the measured parallelism, and the validation verdict.
type Report struct {
	Feature           string
	RunID             string
	Spans             []manifest.PhaseSpan
	ParallelGroup     []manifest.PhaseSpan
	SpeedupFactor     float64
	GenuinelyParallel bool
	TaskStatus        models.TaskStatus
	Validation        *models.ValidationOutcome
	FilesChanged      []string
}

// Build derives a report from a feature's manifest entries. Phase spans
// are paired from started/terminal entry pairs; the parallel group is the
// largest set of spans starting within window of each other. runID may be
// empty when reporting on a historical manifest that spans several runs.
func Build(feature, runID string, entries []models.ManifestEntry, window time.Duration) *Report {
	if window <= 0 {
		window = manifest.DefaultParallelWindow
	}
	spans := manifest.Spans(entries)
	group := manifest.ParallelGroup(spans, window)

	r := &Report{
		Feature:       feature,
		RunID:         runID,
		Spans:         spans,
		ParallelGroup: group,
	}
	if group != nil {
		r.SpeedupFactor = manifest.Speedup(group)
		r.GenuinelyParallel = r.SpeedupFactor >= manifest.GenuineSpeedupThreshold
	}
	return r
}

// Render writes the report as a table followed by a summary block.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Run report for %s", r.Feature)
	if r.RunID != "" {
		fmt.Fprintf(w, " (run %s)", r.RunID)
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Phase", "Status", "Exit", "Duration", "Started"})
	for _, span := range r.Spans {
		tw.AppendRow(table.Row{
			span.Phase,
			string(span.Status),
			exitCell(span),
			durationCell(span),
			span.Started.UTC().Format("15:04:05"),
		})
	}
	tw.Render()

	fmt.Fprintln(w)
	if len(r.ParallelGroup) >= 2 {
		names := make([]string, 0, len(r.ParallelGroup))
		for _, span := range r.ParallelGroup {
			names = append(names, span.Phase)
		}
		sort.Strings(names)
		verdict := "sequential-equivalent"
		if r.GenuinelyParallel {
			verdict = "genuine"
		}
		fmt.Fprintf(w, "Parallel group: %s\n", strings.Join(names, ", "))
		fmt.Fprintf(w, "Speedup factor: %.1fx (%s)\n", r.SpeedupFactor, verdict)
	} else {
		fmt.Fprintln(w, "Parallel group: none detected")
	}

	if r.Validation != nil {
		if r.Validation.Passed {
			fmt.Fprintf(w, "Validation: passed after %d attempt(s)", r.Validation.Attempts)
			if r.Validation.CoveragePercent > 0 {
				fmt.Fprintf(w, ", coverage %.1f%%", r.Validation.CoveragePercent)
			}
			fmt.Fprintln(w)
		} else {
			fmt.Fprintf(w, "Validation: failed after %d attempt(s)\n", r.Validation.Attempts)
			for _, f := range r.Validation.LastFailures {
				fmt.Fprintf(w, "  - %s (%s): %s\n", f.Gate, f.Category, firstLine(f.Report))
			}
		}
	}

	if r.TaskStatus != "" {
		fmt.Fprintf(w, "Task status: %s\n", r.TaskStatus)
	}
	if len(r.FilesChanged) > 0 {
		fmt.Fprintf(w, "Files changed: %d\n", len(r.FilesChanged))
		for _, f := range r.FilesChanged {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}

func exitCell(span manifest.PhaseSpan) string {
	if !span.Terminal() {
		return "-"
	}
	return fmt.Sprintf("%d", span.ExitCode)
}

func durationCell(span manifest.PhaseSpan) string {
	if !span.Terminal() {
		return "-"
	}
	return span.Duration.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
