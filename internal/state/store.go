// Package state persists the durable task record for each feature. Every
// write replaces the whole state document atomically, so a concurrent
// reader observes either the fully-old or fully-new content and a crash
// mid-write leaves the previous document intact.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/cadence/internal/filelock"
	"github.com/harrison/cadence/internal/models"
)

// Document is the on-disk task state for one feature.
type Document struct {
	Status      models.TaskStatus `yaml:"status"`
	FeatureName string            `yaml:"feature_name"`
	UpdatedAt   time.Time         `yaml:"updated_at"`
}

// CorruptError reports an unreadable or unparseable state file. State
// corruption is fatal and never auto-repaired: silently rewriting the file
// could mask a genuine atomic-write bug.
type CorruptError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("task state %s corrupt: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// TransitionError reports a status write that violates the task lifecycle.
type TransitionError struct {
	Feature string
	From    models.TaskStatus
	To      models.TaskStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: illegal status transition %s -> %s", e.Feature, e.From, e.To)
}

// Store reads and writes per-feature task state documents under dir.
// Writers racing for the same feature serialize on an advisory lock held
// only for one read-modify-write cycle.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the state file location for a feature.
func (s *Store) Path(feature string) string {
	return filepath.Join(s.dir, feature+".yaml")
}

// Read loads the current state document for a feature. A missing file
// yields os.ErrNotExist; an unparseable file yields a CorruptError.
// Reads take no lock: the atomic-replace write protocol guarantees a
// reader sees either the fully-old or fully-new document.
func (s *Store) Read(feature string) (*Document, error) {
	return s.readUnlocked(s.Path(feature), feature)
}

// Create initializes a feature's state at todo, or resumes an existing
// record. A failed run leaves the task at doing or review; a new run of
// the same feature picks the document up as-is and advances it through
// the normal lifecycle. Only a completed feature is refused.
func (s *Store) Create(feature string) error {
	path := s.Path(feature)
	return filelock.WithLock(path, func() error {
		current, err := s.readUnlocked(path, feature)
		if err == nil {
			if current.Status == models.StatusDone {
				return fmt.Errorf("task %s is already done; nothing to run", feature)
			}
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return s.writeDoc(path, &Document{
			Status:      models.StatusTodo,
			FeatureName: feature,
			UpdatedAt:   time.Now().UTC(),
		})
	})
}

// Transition moves a feature's status to next. The current document is
// read, the transition validated against the lifecycle, and the new
// document written via atomic replace, all under the feature's lock.
func (s *Store) Transition(feature string, next models.TaskStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("task %s: unrecognized status %q", feature, next)
	}

	path := s.Path(feature)
	return filelock.WithLock(path, func() error {
		current, err := s.readUnlocked(path, feature)
		if err != nil {
			return err
		}
		if !models.CanTransition(current.Status, next) {
			return &TransitionError{Feature: feature, From: current.Status, To: next}
		}
		return s.writeDoc(path, &Document{
			Status:      next,
			FeatureName: feature,
			UpdatedAt:   time.Now().UTC(),
		})
	})
}

func (s *Store) readUnlocked(path, feature string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task state for %s: %w", feature, os.ErrNotExist)
		}
		return nil, &CorruptError{Path: path, Err: err}
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if !doc.Status.IsValid() {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("unrecognized status %q", doc.Status)}
	}
	return &doc, nil
}

func (s *Store) writeDoc(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode task state: %w", err)
	}
	return filelock.AtomicWrite(path, data)
}
