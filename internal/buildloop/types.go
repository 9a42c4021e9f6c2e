package buildloop

import "time"

// IterationStatus is the classification of one iteration, per spec.md §3.
type IterationStatus string

const (
	IterationSuccess    IterationStatus = "success"
	IterationFailure    IterationStatus = "failure"
	IterationIncomplete IterationStatus = "incomplete"
)

// StopReason is why the loop terminated, per spec.md §3/§4.10.
type StopReason string

const (
	StopNoActionableStories StopReason = "no_actionable_stories"
	StopMaxIterations       StopReason = "max_iterations"
	StopOverbakeAbort       StopReason = "overbake_abort"
)

// IterationResult is one row of BuildResult.Iterations, per spec.md §3.
type IterationResult struct {
	Iteration  int
	StoryID    string
	StoryTitle string
	Status     IterationStatus
	LogPath    string
	MetaPath   string
	Started    time.Time
	Ended      time.Time
}

// BuildResult is the loop's return value, per spec.md §3.
type BuildResult struct {
	RunID               string
	IterationsCompleted int
	StoriesDone         []string
	Iterations          []IterationResult
	StopReason          StopReason
	WorktreeBranch      string
}

// WorktreeOptions controls optional worktree isolation, per spec.md §4.10.
type WorktreeOptions struct {
	Enabled bool
	Name    string
}

// Options is the loop's input contract, per spec.md §4.10.
type Options struct {
	PlanPath         string
	ProgressPath     string
	GuardrailsPath   string
	ErrorsLogPath    string
	ActivityLogPath  string
	MaxIterations    int
	MaxFailures      int
	PauseOnOverbake  bool
	NoCommit         bool
	Agent            string
	StaleSeconds     int
	Cwd              string
	Worktree         WorktreeOptions
	// RunID overrides the generated run identifier, per spec.md §9's note
	// that an explicit runId is an acceptable alternative to the injected
	// entropy source.
	RunID string
}
