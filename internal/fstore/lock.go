package fstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultLockTimeout bounds how long a caller waits for a file lock before
// giving up with [ErrWouldBlock].
const DefaultLockTimeout = 5 * time.Second

const (
	initialBackoff = time.Millisecond
	maxBackoff     = 25 * time.Millisecond

	lockPerms = 0o644
	dirPerms  = 0o755
)

// Lock errors.
var (
	// ErrWouldBlock is returned when the lock retry budget is exhausted
	// while another holder keeps the lock.
	ErrWouldBlock = errors.New("lock would block")

	errLockFileOpen = errors.New("failed to open lock file")
)

// fileLock represents a held exclusive lock guarding one data file.
//
// The lock is taken on a sibling "<path>.lock" file, never on the data file
// itself: the data file is replaced by rename on every write, and flock binds
// to an inode, so a lock on the data file would stop guarding the pathname
// the moment the rename lands.
type fileLock struct {
	file *os.File
}

// acquireLock takes an exclusive flock on the sibling lock file of path,
// retrying with exponential backoff (1ms doubling up to 25ms) until timeout.
//
// Parent directories are created as needed so first use of a fresh base
// directory needs no separate setup step.
func acquireLock(path string, timeout time.Duration) (*fileLock, error) {
	lockPath := path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), dirPerms); err != nil {
		return nil, fmt.Errorf("%w: %w", errLockFileOpen, err)
	}

	file, openErr := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockPerms) //nolint:gosec // path is from caller
	if openErr != nil {
		return nil, fmt.Errorf("%w: %w", errLockFileOpen, openErr)
	}

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff

	for {
		flockErr := flockRetryEINTR(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			return &fileLock{file: file}, nil
		}

		if !isWouldBlock(flockErr) {
			_ = file.Close()

			return nil, fmt.Errorf("flock: %w", flockErr)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			_ = file.Close()

			return nil, fmt.Errorf("%w: timed out after %s: %s", ErrWouldBlock, timeout, path)
		}

		time.Sleep(min(backoff, remaining))

		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// release unlocks and closes the lock file. Safe to call once per lock on
// every exit path; errors during cleanup are not actionable and are dropped.
func (l *fileLock) release() {
	if l.file != nil {
		_ = flockRetryEINTR(int(l.file.Fd()), unix.LOCK_UN)
		_ = l.file.Close()
		l.file = nil
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

// flockRetryEINTR wraps flock, retrying on EINTR.
//
// Signals (SIGCHLD, SIGWINCH, timers) can interrupt any blocking syscall;
// EINTR means the call should simply be retried. Retries are capped to avoid
// spinning forever under a pathological signal storm.
func flockRetryEINTR(fd, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = unix.Flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
