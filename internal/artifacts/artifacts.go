// Package artifacts writes per-iteration run artifacts to disk and
// maintains the run's errors log, per spec.md §4.8. Grounded on the
// teacher's internal/parser.MarkdownParser use of goldmark
// (blueman82/conductor internal/parser/markdown.go) for a well-formedness
// sanity check on the rendered Markdown summary, and on filelock's
// atomic-write discipline for the log/meta files themselves.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/poe-code/ralph/internal/filelock"
)

// GitInfo carries the optional version-control delta for an iteration. Zero
// value means "no git info available", in which case the ## Git section of
// the Markdown summary is omitted entirely.
type GitInfo struct {
	HeadBefore      string
	HeadAfter       string
	Commits         []Commit
	ChangedFiles    []string
	UncommittedDiff string
}

// Commit is one commit line in the ## Git / ### Commits section.
type Commit struct {
	Hash    string // 7-char short hash
	Subject string
}

func (g GitInfo) present() bool {
	return g.HeadBefore != "" || g.HeadAfter != "" || len(g.Commits) > 0 || len(g.ChangedFiles) > 0 || g.UncommittedDiff != ""
}

// Meta describes one iteration for both the .log setup-hint and the .md
// summary.
type Meta struct {
	RunID      string
	Iteration  int
	StoryID    string
	StoryTitle string
	Status     string // success | failure | incomplete
	Started    time.Time
	Ended      time.Time
	Stdout     string
	Stderr     string
	// SpawnOrExitFailure marks a failure iteration caused by a non-zero
	// exit or a spawn error, triggering the setup hint and errors-log
	// append, per spec.md §4.8.
	SpawnOrExitFailure bool
	Git                GitInfo
}

const setupHint = "hint: verify the configured agent executable is installed and on PATH, and that it accepts a prompt on stdin."

// Writer persists artifacts under <repoRoot>/.poe-code-ralph/runs/ and
// appends to the shared errors log.
type Writer struct {
	RunsDir       string
	ErrorsLogPath string
}

// New returns a Writer rooted at repoRoot's default layout.
func New(repoRoot string) (*Writer, error) {
	runsDir := filepath.Join(repoRoot, ".poe-code-ralph", "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("artifacts: create runs dir: %w", err)
	}
	return &Writer{
		RunsDir:       runsDir,
		ErrorsLogPath: filepath.Join(repoRoot, ".poe-code-ralph", "errors.log"),
	}, nil
}

func (w *Writer) logPath(meta Meta) string {
	return filepath.Join(w.RunsDir, fmt.Sprintf("run-%s-iter-%d.log", meta.RunID, meta.Iteration))
}

func (w *Writer) metaPath(meta Meta) string {
	return filepath.Join(w.RunsDir, fmt.Sprintf("run-%s-iter-%d.md", meta.RunID, meta.Iteration))
}

// WriteLog writes the iteration's raw log file: "# stdout\n<stdout>" and
// "# stderr\n<stderr>" sections, omitting empty ones, with the setup hint
// appended when SpawnOrExitFailure is set. Returns the absolute path
// written.
func (w *Writer) WriteLog(meta Meta) (string, error) {
	var b strings.Builder
	if meta.Stdout != "" {
		fmt.Fprintf(&b, "# stdout\n%s\n", meta.Stdout)
	}
	if meta.Stderr != "" {
		fmt.Fprintf(&b, "# stderr\n%s\n", meta.Stderr)
	}
	if meta.SpawnOrExitFailure {
		fmt.Fprintf(&b, "# hint\n%s\n", setupHint)
	}

	path := w.logPath(meta)
	if err := filelock.AtomicWrite(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("artifacts: write log: %w", err)
	}
	return path, nil
}

// WriteSummary renders and writes the Markdown iteration summary. The
// rendered Markdown is checked for well-formedness via goldmark before
// being written.
func (w *Writer) WriteSummary(meta Meta, logPath string) (string, error) {
	body := renderSummary(meta, logPath)
	if err := validateMarkdown(body); err != nil {
		return "", fmt.Errorf("artifacts: iteration %d summary is not well-formed markdown: %w", meta.Iteration, err)
	}
	path := w.metaPath(meta)
	if err := filelock.AtomicWrite(path, []byte(body)); err != nil {
		return "", fmt.Errorf("artifacts: write summary: %w", err)
	}
	return path, nil
}

func renderSummary(meta Meta, logPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s — Iteration %d\n\n", meta.RunID, meta.Iteration)
	fmt.Fprintf(&b, "- Run ID: %s\n", meta.RunID)
	fmt.Fprintf(&b, "- Iteration: %d\n", meta.Iteration)
	fmt.Fprintf(&b, "- Mode: build\n")
	fmt.Fprintf(&b, "- Story: %s: %s\n", meta.StoryID, meta.StoryTitle)
	fmt.Fprintf(&b, "- Started: %s\n", meta.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Ended: %s\n", meta.Ended.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %gs\n", meta.Ended.Sub(meta.Started).Seconds())
	fmt.Fprintf(&b, "- Status: %s\n", meta.Status)
	fmt.Fprintf(&b, "- Log: %s\n", logPath)

	if meta.Git.present() {
		b.WriteString("\n## Git\n\n")
		if meta.Git.HeadBefore != "" || meta.Git.HeadAfter != "" {
			fmt.Fprintf(&b, "- Head before: %s\n", meta.Git.HeadBefore)
			fmt.Fprintf(&b, "- Head after: %s\n", meta.Git.HeadAfter)
		}
		if len(meta.Git.Commits) > 0 {
			b.WriteString("\n### Commits\n\n")
			for _, c := range meta.Git.Commits {
				fmt.Fprintf(&b, "- %s %s\n", c.Hash, c.Subject)
			}
		}
		if len(meta.Git.ChangedFiles) > 0 {
			b.WriteString("\n### Changed Files (commits)\n\n")
			for _, f := range meta.Git.ChangedFiles {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		if meta.Git.UncommittedDiff != "" {
			b.WriteString("\n### Uncommitted Changes\n\n")
			fmt.Fprintf(&b, "```\n%s\n```\n", meta.Git.UncommittedDiff)
		}
	}

	return b.String()
}

// AppendError appends stderr (plus the setup hint, when applicable) to the
// run's errors log, creating it and any missing parent directories as
// needed. Called only for failure iterations with non-empty stderr, per
// spec.md §4.8.
func (w *Writer) AppendError(meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(w.ErrorsLogPath), 0755); err != nil {
		return fmt.Errorf("artifacts: create errors log dir: %w", err)
	}
	f, err := os.OpenFile(w.ErrorsLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("artifacts: open errors log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "[iteration %d] story=%s\n%s\n", meta.Iteration, meta.StoryID, meta.Stderr)
	if meta.SpawnOrExitFailure {
		fmt.Fprintf(&b, "%s\n", setupHint)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("artifacts: append errors log: %w", err)
	}
	return nil
}

// AppendOverbakeWarning appends an overbake warning block to the errors
// log, starting with "[OVERBAKE] <storyId>: <storyTitle>", per spec.md §6.
func (w *Writer) AppendOverbakeWarning(storyID, storyTitle string, consecutiveFailures, threshold int) error {
	if err := os.MkdirAll(filepath.Dir(w.ErrorsLogPath), 0755); err != nil {
		return fmt.Errorf("artifacts: create errors log dir: %w", err)
	}
	f, err := os.OpenFile(w.ErrorsLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("artifacts: open errors log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[OVERBAKE] %s: %s (consecutiveFailures=%d threshold=%d)\n", storyID, storyTitle, consecutiveFailures, threshold)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("artifacts: append overbake warning: %w", err)
	}
	return nil
}

func validateMarkdown(source string) error {
	return goldmark.New().Convert([]byte(source), discard{})
}

// discard implements io.Writer, used only to drive goldmark's renderer for
// a well-formedness check without keeping the rendered HTML around.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
