// Package filelock provides advisory file locking and atomic-write helpers
// shared by the Plan Store and the Worktree Coordinator's registry writer.
// Adapted from the teacher's internal/filelock package (blueman82/conductor):
// same flock wrapper and atomic-write-via-rename strategy, plus a retry
// policy layered on top to implement spec.md §4.2's bounded-backoff lock
// acquisition.
package filelock

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockUnavailable is returned when a lock cannot be acquired within a
// RetryPolicy's attempt budget (spec.md §4.2, §7 LockUnavailable).
var ErrLockUnavailable = errors.New("filelock: lock unavailable")

// FileLock wraps a flock.Flock for coordinating access to a path.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// New creates a new FileLock for the given lock-file path. The lock file
// itself is created on first Lock/TryLock call if missing.
func New(path string) *FileLock {
	return &FileLock{flock: flock.New(path), path: path}
}

// Lock acquires an exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("filelock: acquire %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (fl *FileLock) TryLock() (bool, error) {
	ok, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("filelock: try-acquire %s: %w", fl.path, err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("filelock: release %s: %w", fl.path, err)
	}
	return nil
}

// RetryPolicy bounds how long a caller will wait to acquire a lock before
// giving up with ErrLockUnavailable. Defaults match spec.md §4.2: 20
// attempts, exponential backoff between 25ms and 250ms.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy is the policy spec.md §4.2 locks in.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 20, MinBackoff: 25 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
}

// backoff computes the delay before attempt n (1-based), doubling from
// MinBackoff and capping at MaxBackoff, with up to 20% jitter so that
// multiple waiting processes don't retry in lockstep.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.MinBackoff << uint(attempt-1)
	if d > p.MaxBackoff || d <= 0 {
		d = p.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}

// AcquireWithRetry attempts to acquire path's lock up to policy.MaxAttempts
// times, sleeping an exponentially increasing backoff between attempts. On
// success it returns a locked FileLock; the caller must Unlock it. On
// exhaustion it returns ErrLockUnavailable wrapping the path.
func AcquireWithRetry(path string, policy RetryPolicy) (*FileLock, error) {
	lock := New(path)
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		ok, err := lock.TryLock()
		if err != nil {
			lastErr = err
		} else if ok {
			return lock, nil
		}
		if attempt < policy.MaxAttempts {
			time.Sleep(policy.backoff(attempt))
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLockUnavailable, path, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, path)
}

// AtomicWrite writes data to path using a temp-file-then-rename strategy so
// readers never observe a partial write.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("filelock: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filelock: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("filelock: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("filelock: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filelock: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("filelock: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("filelock: rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}

// LockPathFor derives the advisory lock-file path for a target file: the
// target path with ".lock" appended, matching the teacher's convention.
func LockPathFor(path string) string {
	return path + ".lock"
}
