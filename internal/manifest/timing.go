package manifest

import (
	"time"

	"github.com/harrison/cadence/internal/models"
)

// DefaultParallelWindow is the maximum gap between started timestamps for
// two phases to be considered members of the same parallel group.
const DefaultParallelWindow = 5 * time.Second

// GenuineSpeedupThreshold is the minimum speedup factor for a run to be
// classified as genuinely parallel.
const GenuineSpeedupThreshold = 2.0

// PhaseSpan is the reconstructed timeline of one phase: its started entry
// paired with its terminal entry.
type PhaseSpan struct {
	Phase    string
	Started  time.Time
	Status   models.PhaseStatus // Terminal status; started if the phase never finished
	ExitCode int
	Duration time.Duration
}

// Terminal reports whether the phase reached a terminal manifest status.
func (s PhaseSpan) Terminal() bool {
	return s.Status.IsTerminal()
}

// Spans pairs started and terminal entries per phase, in start order. Each
// phase's own entries are strictly ordered in the manifest, so the first
// started entry and the first following terminal entry for a phase belong
// together.
func Spans(entries []models.ManifestEntry) []PhaseSpan {
	var spans []PhaseSpan
	index := make(map[string]int)

	for _, e := range entries {
		switch e.Status {
		case models.PhaseStarted:
			index[e.Phase] = len(spans)
			spans = append(spans, PhaseSpan{
				Phase:   e.Phase,
				Started: e.Timestamp,
				Status:  models.PhaseStarted,
			})
		case models.PhaseSuccess, models.PhaseFailure:
			i, ok := index[e.Phase]
			if !ok || spans[i].Terminal() {
				// Terminal entry without a live started entry; record it
				// standalone so nothing is silently dropped.
				span := PhaseSpan{Phase: e.Phase, Started: e.Timestamp, Status: e.Status}
				if e.ExitCode != nil {
					span.ExitCode = *e.ExitCode
				}
				if e.DurationSec != nil {
					span.Duration = time.Duration(*e.DurationSec) * time.Second
				}
				spans = append(spans, span)
				continue
			}
			spans[i].Status = e.Status
			if e.ExitCode != nil {
				spans[i].ExitCode = *e.ExitCode
			}
			if e.DurationSec != nil {
				spans[i].Duration = time.Duration(*e.DurationSec) * time.Second
			}
		}
	}

	return spans
}

// ParallelGroup returns the largest set of spans whose started timestamps
// all fall within window of the group's earliest start. Spans must be in
// start order, as returned by Spans.
func ParallelGroup(spans []PhaseSpan, window time.Duration) []PhaseSpan {
	var best []PhaseSpan
	for i := range spans {
		group := []PhaseSpan{spans[i]}
		for j := i + 1; j < len(spans); j++ {
			if spans[j].Started.Sub(spans[i].Started) <= window {
				group = append(group, spans[j])
			}
		}
		if len(group) > len(best) {
			best = group
		}
	}
	if len(best) < 2 {
		return nil
	}
	return best
}

// Speedup computes the measured parallel speedup for a group:
// sum of member durations divided by the longest member duration.
// Returns 0 for groups of fewer than two members or zero durations.
func Speedup(group []PhaseSpan) float64 {
	if len(group) < 2 {
		return 0
	}
	var sum, max float64
	for _, s := range group {
		d := s.Duration.Seconds()
		sum += d
		if d > max {
			max = d
		}
	}
	if max == 0 {
		return 0
	}
	return sum / max
}

// GenuinelyParallel reports whether the speedup factor proves concurrent
// execution rather than sequential phases that merely started close
// together.
func GenuinelyParallel(speedup float64) bool {
	return speedup >= GenuineSpeedupThreshold
}
