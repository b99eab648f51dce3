// Package models defines the core data types shared across cadence:
// features, task statuses, manifest entries, and run results.
package models

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle status of a feature's task record.
type TaskStatus string

const (
	StatusTodo   TaskStatus = "todo"   // Created, no work started
	StatusDoing  TaskStatus = "doing"  // Phases executing
	StatusReview TaskStatus = "review" // Artifacts produced, under validation
	StatusDone   TaskStatus = "done"   // Validation passed, run complete
)

// ValidTaskStatuses returns all recognized task status values.
func ValidTaskStatuses() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusDoing, StatusReview, StatusDone}
}

// IsValid reports whether s is a recognized task status value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusReview, StatusDone:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the move from one status to another is a
// legal lifecycle transition. The lifecycle flows todo -> doing -> review ->
// done, with one backward edge: review -> doing when validation fails and
// the task is reopened. Writing the same status again is permitted.
// A task may never skip from todo straight to done.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusTodo:
		return to == StatusDoing
	case StatusDoing:
		return to == StatusReview
	case StatusReview:
		return to == StatusDone || to == StatusDoing
	case StatusDone:
		return false
	default:
		return false
	}
}

// Feature is the unit of work driven through the phase pipeline.
// It is created once per orchestration run; only its status and its
// associated manifest/state files change afterwards.
type Feature struct {
	Name      string     // Authorized name (already passed identifier validation)
	WorkDir   string     // Working directory derived from the name
	Status    TaskStatus // Current lifecycle status
	CreatedAt time.Time  // When this run created the feature record
}

// NewFeature constructs a Feature with status todo. The name must already
// be authorized by the identifier validator; this constructor does not
// re-check it.
func NewFeature(name, workDir string) *Feature {
	return &Feature{
		Name:      name,
		WorkDir:   workDir,
		Status:    StatusTodo,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks that the feature has the fields every consumer relies on.
func (f *Feature) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feature name is required")
	}
	if f.WorkDir == "" {
		return fmt.Errorf("feature work directory is required")
	}
	if !f.Status.IsValid() {
		return fmt.Errorf("unrecognized task status %q", f.Status)
	}
	return nil
}
