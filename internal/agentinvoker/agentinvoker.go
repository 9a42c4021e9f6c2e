// Package agentinvoker spawns the external coding-agent subprocess for one
// build iteration, per spec.md §4.5. Grounded on the teacher's
// internal/agent.Invoker.Invoke and internal/claude.SetCleanEnv
// (blueman82/conductor), trimmed from conductor's multi-agent/QC JSON
// schema plumbing down to Ralph's single contract: the agent reads its
// prompt from stdin and Ralph records stdout/stderr/exit code verbatim for
// completion detection and artifact writing.
package agentinvoker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Result captures one subprocess invocation, per spec.md §4.5's contract:
// the Build Loop never inspects the subprocess directly, only this result.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Invoker runs the configured coding-agent binary, feeding it a prompt on
// stdin and capturing stdout/stderr separately so agent noise on stderr
// never contaminates completion-marker detection (spec.md §4.6, which scans
// stdout only).
type Invoker struct {
	// Command is the agent binary to run, e.g. "claude". Defaults to
	// "claude" when empty.
	Command string
	// Args are additional arguments passed before the agent reads stdin.
	Args []string
	// Dir is the working directory for the subprocess (typically the
	// active worktree).
	Dir string
	// cleanTmpDir isolates TMPDIR from editor/IDE socket files that have
	// been observed to crash coding-agent CLIs when they watch the
	// filesystem (see the teacher's internal/claude.SetCleanEnv).
	cleanTmpDir string
}

// New returns an Invoker defaulting Command to "claude" and establishing a
// dedicated TMPDIR, mirroring the teacher's conductor-claude temp directory.
func New() *Invoker {
	dir := filepath.Join(os.TempDir(), "ralph-agent")
	_ = os.MkdirAll(dir, 0755)
	return &Invoker{Command: "claude", cleanTmpDir: dir}
}

// Invoke runs the agent with prompt delivered on stdin, honoring ctx
// cancellation/deadline. A context deadline exceeded is reported via
// Result.TimedOut rather than as an error, since spec.md §4.5 treats a
// timed-out iteration as a normal (failed) iteration outcome, not a fatal
// error.
func (inv *Invoker) Invoke(ctx context.Context, prompt string) (*Result, error) {
	command := inv.Command
	if command == "" {
		command = "claude"
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = strings.NewReader(prompt)
	inv.setCleanEnv(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("agentinvoker: run %s: %w", command, err)
	}
	return result, nil
}

// setCleanEnv copies the current environment and overrides TMPDIR, so the
// subprocess never inherits editor/IDE socket paths that can crash an agent
// CLI watching the filesystem.
func (inv *Invoker) setCleanEnv(cmd *exec.Cmd) {
	env := os.Environ()
	found := false
	for i, kv := range env {
		if strings.HasPrefix(kv, "TMPDIR=") {
			env[i] = "TMPDIR=" + inv.cleanTmpDir
			found = true
			break
		}
	}
	if !found {
		env = append(env, "TMPDIR="+inv.cleanTmpDir)
	}
	cmd.Env = env
}
