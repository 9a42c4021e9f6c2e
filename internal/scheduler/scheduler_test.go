package scheduler

import (
	"testing"
	"time"

	"github.com/poe-code/ralph/internal/planmodel"
)

func plan(stories ...planmodel.Story) *planmodel.Plan {
	return &planmodel.Plan{Version: 1, Stories: stories}
}

func TestSelect_PrefersDeclaredOrder(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen},
		planmodel.Story{ID: "US-002", Status: planmodel.StatusOpen},
	)
	got := Select(p, time.Now(), 0, nil)
	if got == nil || got.ID != "US-001" {
		t.Fatalf("expected US-001 first, got %+v", got)
	}
}

func TestSelect_SkipsDoneAndBlocked(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusDone},
		planmodel.Story{ID: "US-002", Status: planmodel.StatusBlocked},
		planmodel.Story{ID: "US-003", Status: planmodel.StatusOpen},
	)
	got := Select(p, time.Now(), 0, nil)
	if got == nil || got.ID != "US-003" {
		t.Fatalf("expected US-003, got %+v", got)
	}
}

func TestSelect_RespectsIgnoreSet(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen},
		planmodel.Story{ID: "US-002", Status: planmodel.StatusOpen},
	)
	got := Select(p, time.Now(), 0, map[string]bool{"US-001": true})
	if got == nil || got.ID != "US-002" {
		t.Fatalf("expected US-002 (US-001 ignored), got %+v", got)
	}
}

func TestSelect_DependencyMustBeDone(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-002", Status: planmodel.StatusOpen, DependsOn: []string{"US-001"}},
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen},
	)
	got := Select(p, time.Now(), 0, nil)
	if got == nil || got.ID != "US-001" {
		t.Fatalf("expected US-001 to be selected before its dependent, got %+v", got)
	}
}

func TestSelect_MissingDependencyNeverSelectable(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen, DependsOn: []string{"US-999"}},
	)
	got := Select(p, time.Now(), 0, nil)
	if got != nil {
		t.Fatalf("expected no selectable story, got %+v", got)
	}
}

func TestSelect_SelfDependencyNeverSelectable(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen, DependsOn: []string{"US-001"}},
	)
	got := Select(p, time.Now(), 0, nil)
	if got != nil {
		t.Fatalf("expected no selectable story for self-dependency, got %+v", got)
	}
}

func TestSelect_CyclicDependenciesYieldNoCandidate(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusOpen, DependsOn: []string{"US-002"}},
		planmodel.Story{ID: "US-002", Status: planmodel.StatusOpen, DependsOn: []string{"US-001"}},
	)
	got := Select(p, time.Now(), 0, nil)
	if got != nil {
		t.Fatalf("expected no selectable story in a cycle, got %+v", got)
	}
}

func TestSelect_StaleZeroReclaimsImmediately(t *testing.T) {
	now := time.Now()
	updated := now // just updated, not stale by any positive threshold
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusInProgress, UpdatedAt: &updated},
	)
	got := Select(p, now, 0, nil)
	if got == nil || got.ID != "US-001" {
		t.Fatalf("expected staleSeconds=0 to reclaim immediately, got %+v", got)
	}
}

func TestSelect_StaleSecondsRequiresAge(t *testing.T) {
	now := time.Now()
	recentlyUpdated := now.Add(-5 * time.Second)
	p := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusInProgress, UpdatedAt: &recentlyUpdated},
	)
	got := Select(p, now, 60, nil)
	if got != nil {
		t.Fatalf("expected recently-claimed story not to be reclaimed, got %+v", got)
	}

	staleUpdated := now.Add(-120 * time.Second)
	p2 := plan(
		planmodel.Story{ID: "US-001", Status: planmodel.StatusInProgress, UpdatedAt: &staleUpdated},
	)
	got2 := Select(p2, now, 60, nil)
	if got2 == nil || got2.ID != "US-001" {
		t.Fatalf("expected stale in_progress story to be reclaimed, got %+v", got2)
	}
}

func TestSelect_NoCandidatesReturnsNil(t *testing.T) {
	got := Select(plan(), time.Now(), 0, nil)
	if got != nil {
		t.Fatalf("expected nil for empty plan, got %+v", got)
	}
}
