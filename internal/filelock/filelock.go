// Package filelock provides advisory file locking and atomic write
// primitives used by the manifest logger and the task state store. Locks
// are held only for the duration of a single write or read-modify-write
// cycle, never across a phase's execution.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock wraps a flock advisory lock for coordinating access to a file
// across goroutines and processes.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// New creates a lock for the given lock-file path.
func New(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires the exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire the exclusive lock without blocking.
// Returns true if the lock was acquired.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// WithLock runs fn while holding the exclusive lock for path+".lock".
// The lock is released when fn returns, even on error. The lock file's
// directory is created if missing, so a fresh workspace needs no setup
// before its first locked write.
func WithLock(path string, fn func() error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

// AtomicWrite replaces the file at path with data using the
// write-to-temp-then-rename pattern: the full content is written to a
// temporary file in the same directory, fsynced, then renamed over the
// target. A reader sees either the fully-old or fully-new content; a crash
// mid-write leaves the original file untouched.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Temp file in the target directory keeps the rename on one filesystem,
	// which is what makes it atomic.
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	// Rename succeeded; the deferred cleanup must not remove the target.
	tempFile = nil

	return nil
}

// ReplaceUnderLock acquires the advisory lock for path, performs an atomic
// replace, and releases the lock. The lock file is path+".lock".
func ReplaceUnderLock(path string, data []byte) error {
	return WithLock(path, func() error {
		return AtomicWrite(path, data)
	})
}

// AppendLine appends a single newline-terminated record to path while
// holding the advisory lock for it. The lock covers exactly one entry
// write, so concurrent appenders never interleave partial lines.
func AppendLine(path string, line []byte) error {
	return WithLock(path, func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open %s for append: %w", path, err)
		}
		defer f.Close()

		buf := line
		if len(buf) == 0 || buf[len(buf)-1] != '\n' {
			buf = append(append([]byte{}, line...), '\n')
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("failed to append to %s: %w", path, err)
		}
		return f.Sync()
	})
}
