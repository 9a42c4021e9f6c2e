// Package planvalidate performs read-only structural checks over a parsed
// plan: duplicate story ids, dependencies on missing stories, and dependency
// cycles. Grounded on the teacher's internal/executor.ValidateTasks/HasCycle
// (blueman82/conductor internal/executor/graph.go), adapted from task
// dependency graphs to story dependency graphs. Per spec.md invariant 5 a
// cycle never crashes the scheduler — it just makes every story in the
// cycle unselectable — so findings here are warnings, not load-bearing
// errors; callers decide what to do with them.
package planvalidate

import (
	"fmt"

	"github.com/poe-code/ralph/internal/planmodel"
)

// Finding is one structural issue surfaced by Check.
type Finding struct {
	StoryID string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.StoryID, f.Message)
}

// Check returns every structural issue in plan: duplicate ids, dependencies
// on ids that don't exist, and stories caught in a dependency cycle.
func Check(plan *planmodel.Plan) []Finding {
	var findings []Finding

	seen := make(map[string]bool)
	for _, story := range plan.Stories {
		if seen[story.ID] {
			findings = append(findings, Finding{StoryID: story.ID, Message: "duplicate story id"})
		}
		seen[story.ID] = true
	}

	for _, story := range plan.Stories {
		for _, dep := range story.DependsOn {
			if !seen[dep] {
				findings = append(findings, Finding{
					StoryID: story.ID,
					Message: fmt.Sprintf("depends on non-existent story %q", dep),
				})
			}
		}
	}

	for _, id := range cyclicStoryIDs(plan) {
		findings = append(findings, Finding{StoryID: id, Message: "part of a dependency cycle"})
	}

	return findings
}

// cyclicStoryIDs returns every story id that participates in a dependency
// cycle, via DFS with color marking (white/gray/black), per the teacher's
// HasCycle.
func cyclicStoryIDs(plan *planmodel.Plan) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	edges := make(map[string][]string, len(plan.Stories))
	colors := make(map[string]int, len(plan.Stories))
	for _, story := range plan.Stories {
		colors[story.ID] = white
		edges[story.ID] = append(edges[story.ID], story.DependsOn...)
	}

	var cyclic []string
	var dfs func(node string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		onCycle := false
		for _, dep := range edges[node] {
			if colors[dep] == gray {
				onCycle = true
				continue
			}
			if colors[dep] == white && dfs(dep) {
				onCycle = true
			}
		}
		colors[node] = black
		if onCycle {
			cyclic = append(cyclic, node)
		}
		return onCycle
	}

	for _, story := range plan.Stories {
		if colors[story.ID] == white {
			dfs(story.ID)
		}
	}
	return cyclic
}
