// Package promptrender substitutes {{NAME}} placeholders in a prompt
// template, per spec.md §4.4. Grounded on the @-reference / placeholder
// substitution style of daydemir/ralph's internal/prompts package, adapted
// from embedded-file lookup to a simple in-memory template plus variable
// map (the Prompt Renderer component owns only substitution; the Build Loop
// owns reading the template file per spec.md §6).
package promptrender

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Render substitutes every {{NAME}} occurrence in template for which NAME is
// a key in variables. Unknown placeholders are left verbatim.
func Render(template string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// StoryBlock renders the STORY_BLOCK variable: a Markdown block naming the
// story's id, title, status, dependencies, description, and acceptance
// criteria checklist.
func StoryBlock(id, title, status string, dependsOn []string, description string, acceptanceCriteria []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s: %s\n\n", id, title)
	fmt.Fprintf(&b, "- Status: %s\n", status)
	if len(dependsOn) > 0 {
		fmt.Fprintf(&b, "- Depends on: %s\n", strings.Join(dependsOn, ", "))
	} else {
		b.WriteString("- Depends on: (none)\n")
	}
	if description != "" {
		fmt.Fprintf(&b, "\n%s\n", description)
	}
	if len(acceptanceCriteria) > 0 {
		b.WriteString("\nAcceptance criteria:\n")
		for _, c := range acceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", c)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// QualityGatesBlock renders the QUALITY_GATES variable: a Markdown bullet
// list, or "- (none)" when gates is empty.
func QualityGatesBlock(gates []string) string {
	if len(gates) == 0 {
		return "- (none)"
	}
	lines := make([]string, len(gates))
	for i, g := range gates {
		lines[i] = "- " + g
	}
	return strings.Join(lines, "\n")
}

// Variables builds the recognized placeholder map for the build iteration
// prompt (spec.md §4.4's table), so callers assemble it from one place
// instead of hand-building map[string]string literals at call sites.
type Variables struct {
	PlanPath         string
	ProgressPath     string
	GuardrailsPath   string
	ErrorsLogPath    string
	ActivityLogPath  string
	RepoRoot         string
	GuardrailsRef    string
	ContextRef       string
	ActivityCmd      string
	NoCommit         bool
	RunID            string
	Iteration        int
	RunLogPath       string
	RunMetaPath      string
	StoryID          string
	StoryTitle       string
	StoryBlock       string
	QualityGates     string
}

// ToMap flattens Variables into the map Render expects.
func (v Variables) ToMap() map[string]string {
	return map[string]string{
		"PLAN_PATH":        v.PlanPath,
		"PROGRESS_PATH":    v.ProgressPath,
		"GUARDRAILS_PATH":  v.GuardrailsPath,
		"ERRORS_LOG_PATH":  v.ErrorsLogPath,
		"ACTIVITY_LOG_PATH": v.ActivityLogPath,
		"REPO_ROOT":        v.RepoRoot,
		"GUARDRAILS_REF":   v.GuardrailsRef,
		"CONTEXT_REF":      v.ContextRef,
		"ACTIVITY_CMD":     v.ActivityCmd,
		"NO_COMMIT":        fmt.Sprintf("%t", v.NoCommit),
		"RUN_ID":           v.RunID,
		"ITERATION":        fmt.Sprintf("%d", v.Iteration),
		"RUN_LOG_PATH":     v.RunLogPath,
		"RUN_META_PATH":    v.RunMetaPath,
		"STORY_ID":         v.StoryID,
		"STORY_TITLE":      v.StoryTitle,
		"STORY_BLOCK":      v.StoryBlock,
		"QUALITY_GATES":    v.QualityGates,
	}
}

// Names returns the recognized variable names in a stable order, useful for
// diagnostics (e.g. listing which placeholders a template left unresolved).
func Names() []string {
	names := make([]string, 0, 18)
	for name := range (Variables{}).ToMap() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
