package manifest

import (
	"math"
	"testing"
	"time"

	"github.com/harrison/cadence/internal/models"
)

func intPtr(n int) *int { return &n }

func entry(phase string, status models.PhaseStatus, at time.Time, durationSec int) models.ManifestEntry {
	e := models.ManifestEntry{
		RunID:     "run-1",
		Phase:     phase,
		Status:    status,
		Timestamp: at,
	}
	if status.IsTerminal() {
		e.ExitCode = intPtr(0)
		e.DurationSec = intPtr(durationSec)
	}
	return e
}

func TestSpansPairsStartedWithTerminal(t *testing.T) {
	base := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	entries := []models.ManifestEntry{
		entry("plan", models.PhaseStarted, base, 0),
		entry("plan", models.PhaseSuccess, base.Add(30*time.Second), 30),
		entry("implement-core", models.PhaseStarted, base.Add(31*time.Second), 0),
		entry("implement-core", models.PhaseFailure, base.Add(90*time.Second), 59),
	}

	spans := Spans(entries)
	if len(spans) != 2 {
		t.Fatalf("Span count = %d, want 2", len(spans))
	}
	if spans[0].Phase != "plan" || spans[0].Status != models.PhaseSuccess || spans[0].Duration != 30*time.Second {
		t.Errorf("Unexpected plan span: %+v", spans[0])
	}
	if spans[1].Status != models.PhaseFailure || spans[1].ExitCode != 0 {
		t.Errorf("Unexpected implement-core span: %+v", spans[1])
	}
}

func TestSpeedupParallelImplementGroup(t *testing.T) {
	// Three phases started within 5 seconds of each other with durations
	// 300, 270, 300: speedup = 870/300 = 2.9, genuinely parallel.
	base := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	entries := []models.ManifestEntry{
		entry("implement-core", models.PhaseStarted, base, 0),
		entry("implement-tests", models.PhaseStarted, base.Add(2*time.Second), 0),
		entry("implement-docs", models.PhaseStarted, base.Add(4*time.Second), 0),
		entry("implement-core", models.PhaseSuccess, base.Add(300*time.Second), 300),
		entry("implement-tests", models.PhaseSuccess, base.Add(272*time.Second), 270),
		entry("implement-docs", models.PhaseSuccess, base.Add(304*time.Second), 300),
	}

	spans := Spans(entries)
	group := ParallelGroup(spans, DefaultParallelWindow)
	if len(group) != 3 {
		t.Fatalf("Parallel group size = %d, want 3", len(group))
	}

	speedup := Speedup(group)
	if math.Abs(speedup-870.0/300.0) > 1e-9 {
		t.Errorf("Speedup = %f, want %f", speedup, 870.0/300.0)
	}
	if !GenuinelyParallel(speedup) {
		t.Errorf("Speedup %f must classify as genuinely parallel", speedup)
	}
}

func TestParallelGroupExcludesDistantStarts(t *testing.T) {
	base := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	spans := []PhaseSpan{
		{Phase: "plan", Started: base, Status: models.PhaseSuccess, Duration: 10 * time.Second},
		{Phase: "implement-core", Started: base.Add(time.Minute), Status: models.PhaseSuccess, Duration: 100 * time.Second},
		{Phase: "implement-tests", Started: base.Add(time.Minute + 2*time.Second), Status: models.PhaseSuccess, Duration: 90 * time.Second},
	}

	group := ParallelGroup(spans, DefaultParallelWindow)
	if len(group) != 2 {
		t.Fatalf("Parallel group size = %d, want 2", len(group))
	}
	for _, s := range group {
		if s.Phase == "plan" {
			t.Error("plan started a minute earlier and must not join the group")
		}
	}
}

func TestParallelGroupRequiresTwoMembers(t *testing.T) {
	base := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	spans := []PhaseSpan{
		{Phase: "plan", Started: base, Status: models.PhaseSuccess, Duration: 10 * time.Second},
		{Phase: "review", Started: base.Add(time.Hour), Status: models.PhaseSuccess, Duration: 10 * time.Second},
	}
	if group := ParallelGroup(spans, DefaultParallelWindow); group != nil {
		t.Errorf("Expected no parallel group, got %d members", len(group))
	}
}

func TestSpeedupDegenerateCases(t *testing.T) {
	if s := Speedup(nil); s != 0 {
		t.Errorf("Speedup(nil) = %f, want 0", s)
	}
	group := []PhaseSpan{{Duration: 0}, {Duration: 0}}
	if s := Speedup(group); s != 0 {
		t.Errorf("Speedup of zero durations = %f, want 0", s)
	}
	if GenuinelyParallel(1.4) {
		t.Error("Speedup below 2 must not classify as genuinely parallel")
	}
}
