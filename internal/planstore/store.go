// Package planstore provides file-locked read-modify-write access to a plan
// document on disk, per spec.md §4.2. It is the sole owner of on-disk plan
// mutation: every write to the plan file goes through MutateUnderLock.
//
// Grounded on the teacher's internal/filelock.LockAndWrite convenience
// function (blueman82/conductor), generalized here into explicit
// read-then-mutate-then-write cycle so callers can inspect the plan under
// lock before deciding what to write.
package planstore

import (
	"fmt"
	"os"
	"time"

	"github.com/poe-code/ralph/internal/filelock"
	"github.com/poe-code/ralph/internal/planmodel"
	"github.com/poe-code/ralph/internal/planparser"
)

// Store performs locked reads and read-modify-writes of a plan file.
type Store struct {
	RetryPolicy filelock.RetryPolicy
}

// New returns a Store using spec.md §4.2's default retry policy.
func New() *Store {
	return &Store{RetryPolicy: filelock.DefaultRetryPolicy()}
}

// ReadUnderLock reads and parses the plan at path while holding its
// advisory lock, so it never observes a write in progress.
func (s *Store) ReadUnderLock(path string) (*planmodel.Plan, error) {
	lock, err := filelock.AcquireWithRetry(filelock.LockPathFor(path), s.RetryPolicy)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	return readPlan(path)
}

// MutateFunc receives the current plan and returns the plan to persist.
type MutateFunc func(*planmodel.Plan) (*planmodel.Plan, error)

// MutateUnderLock reads the plan at path, applies fn, and writes the result
// back — all while holding a single advisory lock for the full cycle, so
// at most one writer mutates path at a time (spec.md §4.2, I7).
func (s *Store) MutateUnderLock(path string, fn MutateFunc) (*planmodel.Plan, error) {
	lock, err := filelock.AcquireWithRetry(filelock.LockPathFor(path), s.RetryPolicy)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	plan, err := readPlan(path)
	if err != nil {
		return nil, err
	}

	updated, err := fn(plan)
	if err != nil {
		return nil, err
	}

	if err := writePlan(path, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStoryStatus sets a story's status, updatedAt, and (when becoming
// done) completedAt atomically under the plan lock, preserving startedAt.
// Applying it twice with the same now is idempotent: the second call
// observes the already-updated story and re-writes the same fields.
func (s *Store) UpdateStoryStatus(path, id string, newStatus planmodel.Status, now time.Time) (*planmodel.Plan, error) {
	return s.MutateUnderLock(path, func(plan *planmodel.Plan) (*planmodel.Plan, error) {
		story := plan.StoryByID(id)
		if story == nil {
			return nil, fmt.Errorf("planstore: story %q not found", id)
		}
		story.Status = newStatus
		story.UpdatedAt = &now
		if newStatus == planmodel.StatusDone {
			story.CompletedAt = &now
		}
		return plan, nil
	})
}

func readPlan(path string) (*planmodel.Plan, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planstore: read %s: %w", path, err)
	}
	plan, err := planparser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("planstore: parse %s: %w", path, err)
	}
	return plan, nil
}

func writePlan(path string, plan *planmodel.Plan) error {
	format := planparser.DetectFormatFromPath(path)
	if format == planparser.FormatUnknown {
		format = planparser.FormatYAML
	}
	out, err := planparser.Write(plan, format)
	if err != nil {
		return fmt.Errorf("planstore: serialize %s: %w", path, err)
	}
	if err := filelock.AtomicWrite(path, out); err != nil {
		return fmt.Errorf("planstore: write %s: %w", path, err)
	}
	return nil
}
