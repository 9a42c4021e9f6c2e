package planvalidate

import (
	"testing"

	"github.com/poe-code/ralph/internal/planmodel"
)

func plan(stories ...planmodel.Story) *planmodel.Plan {
	return &planmodel.Plan{Version: 1, Stories: stories}
}

func TestCheck_NoIssues(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001"},
		planmodel.Story{ID: "US-002", DependsOn: []string{"US-001"}},
	)
	if findings := Check(p); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestCheck_DuplicateID(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001"},
		planmodel.Story{ID: "US-001"},
	)
	findings := Check(p)
	if !containsMessage(findings, "US-001", "duplicate story id") {
		t.Errorf("expected duplicate id finding, got %v", findings)
	}
}

func TestCheck_MissingDependency(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", DependsOn: []string{"US-999"}},
	)
	findings := Check(p)
	if len(findings) != 1 || findings[0].StoryID != "US-001" {
		t.Errorf("expected missing-dependency finding for US-001, got %v", findings)
	}
}

func TestCheck_Cycle(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", DependsOn: []string{"US-002"}},
		planmodel.Story{ID: "US-002", DependsOn: []string{"US-001"}},
	)
	findings := Check(p)
	if !containsMessage(findings, "US-001", "part of a dependency cycle") {
		t.Errorf("expected US-001 flagged as cyclic, got %v", findings)
	}
	if !containsMessage(findings, "US-002", "part of a dependency cycle") {
		t.Errorf("expected US-002 flagged as cyclic, got %v", findings)
	}
}

func TestCheck_SelfDependencyIsCyclic(t *testing.T) {
	p := plan(
		planmodel.Story{ID: "US-001", DependsOn: []string{"US-001"}},
	)
	findings := Check(p)
	if !containsMessage(findings, "US-001", "part of a dependency cycle") {
		t.Errorf("expected self-dependency flagged as cyclic, got %v", findings)
	}
}

func containsMessage(findings []Finding, storyID, message string) bool {
	for _, f := range findings {
		if f.StoryID == storyID && f.Message == message {
			return true
		}
	}
	return false
}
