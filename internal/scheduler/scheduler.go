// Package scheduler selects the next actionable story from a plan, per
// spec.md §4.3. Grounded on the filter-then-order shape of the teacher's
// internal/executor.DependencyGraph/CalculateWaves (blueman82/conductor),
// but adapted from multi-task wave grouping to single-story selection: Ralph
// runs one story per iteration rather than a parallel wave of tasks.
package scheduler

import (
	"time"

	"github.com/poe-code/ralph/internal/planmodel"
)

// Select returns the next actionable story in plan, or nil if none survive
// the filter (a terminal no_actionable_stories condition for the Build
// Loop). ignoreStoryIds excludes stories the operator chose to skip this
// run (spec.md §4.10 Decide state).
func Select(plan *planmodel.Plan, now time.Time, staleSeconds int, ignoreStoryIds map[string]bool) *planmodel.Story {
	var candidates []*planmodel.Story
	for i := range plan.Stories {
		story := &plan.Stories[i]
		if !selectable(story, plan, ignoreStoryIds) {
			continue
		}
		candidates = append(candidates, story)
	}
	if len(candidates) == 0 {
		return nil
	}

	// Among in_progress candidates, only staleness-eligible ones may be
	// picked; open candidates are always eligible (spec.md §4.3 step 2).
	staleCutoff := now.Add(-time.Duration(staleSeconds) * time.Second)
	var eligible []*planmodel.Story
	for _, story := range candidates {
		if story.Status == planmodel.StatusOpen {
			eligible = append(eligible, story)
			continue
		}
		// story.Status == in_progress here (selectable guarantees open or in_progress).
		if staleSeconds == 0 {
			eligible = append(eligible, story)
			continue
		}
		if story.UpdatedAt != nil && story.UpdatedAt.Before(staleCutoff) {
			eligible = append(eligible, story)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	// Plan declared order is preserved since candidates/eligible were built
	// by a single forward pass over plan.Stories; no further tie-break.
	return eligible[0]
}

func selectable(story *planmodel.Story, plan *planmodel.Plan, ignoreStoryIds map[string]bool) bool {
	if story.Status != planmodel.StatusOpen && story.Status != planmodel.StatusInProgress {
		return false
	}
	if ignoreStoryIds[story.ID] {
		return false
	}
	if !story.DependsOnDone(plan) {
		return false
	}
	return true
}
