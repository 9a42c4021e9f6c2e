// Package worktree creates and tears down an isolated git worktree for a
// build run, per spec.md §4.9, and maintains a YAML registry of worktrees
// under the same file-locking discipline as the plan store.
//
// Grounded on the teacher's internal/executor.GitCheckpointer interface and
// its CommandRunner abstraction (blueman82/conductor
// internal/executor/git_checkpointer.go, preflight.go): Ralph needs
// `git worktree add`/`git worktree remove` rather than conductor's
// branch-checkpoint/restore cycle, so the interface is narrowed to the
// worktree lifecycle operations Ralph performs, keeping the same
// "interface plus a real exec.Command-backed implementation" shape for
// testability.
package worktree

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/poe-code/ralph/internal/artifacts"
)

// GitRunner executes a git subcommand in a working directory and returns
// combined stdout. Swappable in tests for a fake that records invocations.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecGitRunner runs git via os/exec.
type ExecGitRunner struct{}

// Run executes `git <args...>` with dir as the working directory.
func (ExecGitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("worktree: git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Status is a WorktreeEntry's lifecycle state, per spec.md §3.
type Status string

const (
	StatusActive   Status = "active"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusRemoving Status = "removing"
)

// Entry is a WorktreeEntry record, persisted in the registry file.
type Entry struct {
	Name       string    `yaml:"name"`
	Path       string    `yaml:"path"`
	Branch     string    `yaml:"branch"`
	BaseBranch string    `yaml:"baseBranch"`
	CreatedAt  time.Time `yaml:"createdAt"`
	Source     string    `yaml:"source"`
	Agent      string    `yaml:"agent,omitempty"`
	Status     Status    `yaml:"status"`
	PlanPath   string    `yaml:"planPath,omitempty"`
	StoryID    string    `yaml:"storyId,omitempty"`
	Prompt     string    `yaml:"prompt,omitempty"`
}

// sentinelBranch is used as baseBranch when the current branch cannot be
// detected (e.g. detached HEAD), per spec.md §4.9 step 2.
const sentinelBranch = "HEAD"

// Clock supplies the current time for registry timestamps, so tests don't
// depend on wall-clock time. buildloop.SystemClock also satisfies it
// without this package importing buildloop (avoiding an import cycle); New
// wires this package's own wall-clock systemClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Coordinator creates an isolated worktree under
// <repoRoot>/.poe-code-worktrees/ for a build run.
type Coordinator struct {
	RepoRoot     string
	WorktreesDir string
	RegistryPath string
	Runner       GitRunner
	Clock        Clock
}

// New returns a Coordinator rooted at repoRoot's default layout.
func New(repoRoot string) *Coordinator {
	dir := filepath.Join(repoRoot, ".poe-code-worktrees")
	return &Coordinator{
		RepoRoot:     repoRoot,
		WorktreesDir: dir,
		RegistryPath: filepath.Join(dir, "worktrees.yaml"),
		Runner:       ExecGitRunner{},
		Clock:        systemClock{},
	}
}

// DeriveName returns the worktree name from a plan file path: its base
// name without a .yaml/.yml/.json extension, per spec.md §4.9 step 1.
func DeriveName(planPath string) string {
	base := filepath.Base(planPath)
	ext := filepath.Ext(base)
	switch ext {
	case ".yaml", ".yml", ".json":
		return strings.TrimSuffix(base, ext)
	default:
		return base
	}
}

// Create sets up the worktree for one run: derives/accepts a name, reads
// the current branch, creates branch poe-code/<name> anchored there,
// attaches a worktree, registers it as active, and copies planPath into the
// worktree preserving its relative path. Returns the Entry and the
// worktree-local plan path the loop should switch to.
func (c *Coordinator) Create(ctx context.Context, planPath, name, agent string) (*Entry, string, error) {
	if err := os.MkdirAll(c.WorktreesDir, 0755); err != nil {
		return nil, "", fmt.Errorf("worktree: create worktrees dir: %w", err)
	}
	if name == "" {
		name = DeriveName(planPath)
	}

	baseBranch, err := c.currentBranch(ctx)
	if err != nil {
		baseBranch = sentinelBranch
	}

	branch := "poe-code/" + name
	path := filepath.Join(c.WorktreesDir, name)

	if _, err := c.Runner.Run(ctx, c.RepoRoot, "worktree", "add", "-b", branch, path, baseBranch); err != nil {
		return nil, "", err
	}

	worktreePlanPath, err := c.copyPlan(planPath, path)
	if err != nil {
		return nil, "", err
	}

	entry := &Entry{
		Name:       name,
		Path:       path,
		Branch:     branch,
		BaseBranch: baseBranch,
		CreatedAt:  c.Clock.Now(),
		Source:     planPath,
		Agent:      agent,
		Status:     StatusActive,
		PlanPath:   worktreePlanPath,
	}
	if err := c.upsert(entry); err != nil {
		return nil, "", err
	}
	return entry, worktreePlanPath, nil
}

func (c *Coordinator) currentBranch(ctx context.Context) (string, error) {
	out, err := c.Runner.Run(ctx, c.RepoRoot, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", fmt.Errorf("worktree: detached HEAD")
	}
	return branch, nil
}

// copyPlan copies the plan file at planPath into worktreeRoot preserving
// its relative path under the worktree, creating parent directories as
// needed, and returns the resulting absolute path.
func (c *Coordinator) copyPlan(planPath, worktreeRoot string) (string, error) {
	abs, err := filepath.Abs(planPath)
	if err != nil {
		return "", fmt.Errorf("worktree: resolve plan path: %w", err)
	}
	rel, err := filepath.Rel(c.RepoRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(abs)
	}
	dest := filepath.Join(worktreeRoot, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("worktree: create plan parent dir: %w", err)
	}
	src, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("worktree: open plan source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("worktree: create plan destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("worktree: copy plan: %w", err)
	}
	return dest, nil
}

// Finish marks entry done (if atLeastOneStoryDone) or failed, persists the
// registry, and returns the operator-facing merge hint, per spec.md §4.9's
// termination behavior.
func (c *Coordinator) Finish(entry *Entry, atLeastOneStoryDone bool) (string, error) {
	if atLeastOneStoryDone {
		entry.Status = StatusDone
	} else {
		entry.Status = StatusFailed
	}
	if err := c.upsert(entry); err != nil {
		return "", err
	}
	return MergeHint(entry), nil
}

// Teardown removes the worktree and its branch and deregisters it.
func (c *Coordinator) Teardown(ctx context.Context, entry *Entry, force bool) error {
	entry.Status = StatusRemoving
	_ = c.upsert(entry)

	args := []string{"worktree", "remove", entry.Path}
	if force {
		args = []string{"worktree", "remove", "--force", entry.Path}
	}
	if _, err := c.Runner.Run(ctx, c.RepoRoot, args...); err != nil {
		return err
	}
	if _, err := c.Runner.Run(ctx, c.RepoRoot, "branch", "-D", entry.Branch); err != nil {
		return err
	}
	return c.remove(entry.Name)
}

// MergeHint returns the operator-facing instructions for integrating a
// finished run's branch back into the base branch, per spec.md §4.9: Ralph
// never merges automatically, it only prints how.
func MergeHint(entry *Entry) string {
	return fmt.Sprintf(
		"worktree %s is %s on branch %s\nto merge: git merge %s\nto discard: git worktree remove %s && git branch -D %s",
		entry.Name, entry.Status, entry.Branch, entry.Branch, entry.Path, entry.Branch,
	)
}

// List returns the currently registered worktrees.
func (c *Coordinator) List() ([]Entry, error) {
	return readRegistry(c.RegistryPath)
}

// HeadCommit returns dir's current short commit hash, for bracketing an
// iteration's git delta in the run artifact's ## Git section (spec.md
// §4.8). Returns "" if dir has no commits yet or is not a git checkout.
func (c *Coordinator) HeadCommit(ctx context.Context, dir string) string {
	out, err := c.Runner.Run(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// CaptureGitDelta builds the GitInfo for one iteration given the head
// commit observed before the agent ran: commits made since then, the files
// they touched, and any uncommitted diff left in the working tree.
func (c *Coordinator) CaptureGitDelta(ctx context.Context, dir, headBefore string) artifacts.GitInfo {
	info := artifacts.GitInfo{HeadBefore: headBefore, HeadAfter: c.HeadCommit(ctx, dir)}
	if headBefore == "" {
		return info
	}

	if out, err := c.Runner.Run(ctx, dir, "log", "--format=%h %s", headBefore+"..HEAD"); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, " ", 2)
			commit := artifacts.Commit{Hash: parts[0]}
			if len(parts) == 2 {
				commit.Subject = parts[1]
			}
			info.Commits = append(info.Commits, commit)
		}
	}

	if out, err := c.Runner.Run(ctx, dir, "diff", "--name-only", headBefore, "HEAD"); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				info.ChangedFiles = append(info.ChangedFiles, line)
			}
		}
	}

	if out, err := c.Runner.Run(ctx, dir, "status", "--porcelain"); err == nil && strings.TrimSpace(out) != "" {
		if diff, err := c.Runner.Run(ctx, dir, "diff", "HEAD"); err == nil {
			info.UncommittedDiff = diff
		}
	}

	return info
}
