// Package fstore provides the two filesystem primitives the rest of the
// system is built on: atomic whole-file writes and lock-guarded
// read-modify-write of a single file.
//
// All cross-caller coordination happens through flock on a sibling lock
// file, not through in-process mutexes, so cooperating writers may live in
// separate processes. Writes always go through a temporary file followed by
// a single rename, so a reader never observes partial content.
package fstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"
)

// Store performs atomic writes and locked updates against filesystem paths.
//
// The zero value is not usable; use [New] or [NewWithTimeout].
type Store struct {
	lockTimeout time.Duration
}

// New returns a Store with the default lock timeout.
func New() *Store {
	return NewWithTimeout(DefaultLockTimeout)
}

// NewWithTimeout returns a Store whose lock acquisitions give up with
// [ErrWouldBlock] after the given timeout. Non-positive timeouts fall back
// to the default.
func NewWithTimeout(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	return &Store{lockTimeout: timeout}
}

// AtomicWrite replaces the content of path with data.
//
// The write happens under the path's exclusive lock via a temporary sibling
// file and a single rename, so readers observe either the old content or
// the new content, never a torn mix. On failure the temporary file is
// cleaned up and the original file is left unchanged.
func (s *Store) AtomicWrite(path string, data []byte) error {
	lock, lockErr := acquireLock(path, s.lockTimeout)
	if lockErr != nil {
		return fmt.Errorf("acquiring lock: %w", lockErr)
	}

	defer lock.release()

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// LockedUpdate applies fn to the current content of path while holding the
// path's exclusive lock, then writes the result atomically.
//
// A missing file presents as nil content, so fn always sees a usable base
// state. If fn returns an error it propagates unchanged and nothing is
// written. If fn returns nil content the operation is read-only.
//
// This is the only sanctioned way to mutate shared state files: it closes
// the read-modify-write race that a plain read followed by a write would
// expose between concurrent callers.
func (s *Store) LockedUpdate(path string, fn func(current []byte) ([]byte, error)) error {
	lock, lockErr := acquireLock(path, s.lockTimeout)
	if lockErr != nil {
		return fmt.Errorf("acquiring lock: %w", lockErr)
	}

	defer lock.release()

	current, readErr := os.ReadFile(path) //nolint:gosec // path is from caller
	if readErr != nil {
		if !errors.Is(readErr, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}

		current = nil
	}

	next, fnErr := fn(current)
	if fnErr != nil {
		return fnErr // caller-raised error, no write
	}

	if next == nil {
		return nil // read-only operation
	}

	if err := atomic.WriteFile(path, bytes.NewReader(next)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
