package logger

import (
	"time"

	"github.com/harrison/cadence/internal/models"
)

// Multi fans orchestrator events out to several loggers, letting a run
// write to the console and the run log file at once.
type Multi struct {
	loggers []Target
}

// Target is the subset of logging behavior Multi fans out to. Both
// ConsoleLogger and FileLogger satisfy it.
type Target interface {
	LogPhaseStart(phase string)
	LogPhaseComplete(result models.PhaseResult)
	LogGroupStart(phases []string)
	LogGroupComplete(duration time.Duration)
	LogSummary(result models.RunResult)
}

// NewMulti creates a fan-out logger over targets. Nil targets are skipped.
func NewMulti(targets ...Target) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t != nil {
			m.loggers = append(m.loggers, t)
		}
	}
	return m
}

// LogPhaseStart fans out to every target.
func (m *Multi) LogPhaseStart(phase string) {
	for _, l := range m.loggers {
		l.LogPhaseStart(phase)
	}
}

// LogPhaseComplete fans out to every target.
func (m *Multi) LogPhaseComplete(result models.PhaseResult) {
	for _, l := range m.loggers {
		l.LogPhaseComplete(result)
	}
}

// LogGroupStart fans out to every target.
func (m *Multi) LogGroupStart(phases []string) {
	for _, l := range m.loggers {
		l.LogGroupStart(phases)
	}
}

// LogGroupComplete fans out to every target.
func (m *Multi) LogGroupComplete(duration time.Duration) {
	for _, l := range m.loggers {
		l.LogGroupComplete(duration)
	}
}

// LogSummary fans out to every target.
func (m *Multi) LogSummary(result models.RunResult) {
	for _, l := range m.loggers {
		l.LogSummary(result)
	}
}
