// Package buildloop sequences build iterations and ties together every
// other component, per spec.md §4.10. Grounded on the teacher's
// injected-collaborator shape for orchestration (blueman82/conductor
// internal/executor.Orchestrator, which takes a CommandRunner,
// GitCheckpointer, and Invoker as fields rather than hardcoding os/exec and
// git calls), generalized per spec.md §9's explicit design note: the
// collaborators — clock, entropy, operator prompt, logger, plan store, agent
// invoker, overbake detector, artifact writer, worktree coordinator, history
// store — are capability fields so production wires real implementations and
// tests wire fakes. The scheduler, prompt renderer, and completion detector
// are pure functions called directly rather than injected.
package buildloop

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/poe-code/ralph/internal/agentinvoker"
)

// AgentSpawner runs the coding-agent subprocess for one iteration. The
// concrete *agentinvoker.Invoker satisfies this; tests substitute a fake
// that returns canned Results without spawning anything.
type AgentSpawner interface {
	Invoke(ctx context.Context, prompt string) (*agentinvoker.Result, error)
}

// Clock supplies the current time, so iteration metadata and story
// transitions are reproducible in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EntropySource supplies the random suffix for generated run identifiers.
type EntropySource interface {
	RandomSuffix() string
}

// UUIDEntropySource derives the run id's random suffix from a UUID, trimmed
// to 8 hex characters for a compact identifier.
type UUIDEntropySource struct{}

func (UUIDEntropySource) RandomSuffix() string {
	id := uuid.New().String()
	return id[:8]
}

// OverbakeDecision is the operator's response to an overbake pause.
type OverbakeDecision string

const (
	DecisionContinue OverbakeDecision = "continue"
	DecisionSkip     OverbakeDecision = "skip"
	DecisionAbort    OverbakeDecision = "abort"
)

// OperatorPrompter asks the operator how to proceed after an overbake
// warning. Implementations must default to DecisionContinue on
// non-interactive stdio, per spec.md §6.
type OperatorPrompter interface {
	Prompt(storyID string, consecutiveFailures int) OverbakeDecision
}

// TerminalPrompter reads a decision from stdin when it is a TTY, otherwise
// returns DecisionContinue without blocking.
type TerminalPrompter struct {
	Reader func() (string, error)
}

// NewTerminalPrompter returns a TerminalPrompter wired to read one line
// from the controlling terminal when stdin is interactive.
func NewTerminalPrompter(readLine func() (string, error)) *TerminalPrompter {
	return &TerminalPrompter{Reader: readLine}
}

func (p *TerminalPrompter) Prompt(storyID string, consecutiveFailures int) OverbakeDecision {
	if !isatty.IsTerminal(uintptr(0)) || p.Reader == nil {
		return DecisionContinue
	}
	line, err := p.Reader()
	if err != nil {
		return DecisionContinue
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "skip", "s":
		return DecisionSkip
	case "abort", "a":
		return DecisionAbort
	default:
		return DecisionContinue
	}
}

// GenerateRunID formats a run identifier as YYYYMMDD-HHMMSS-<ms>-<random>
// using local time, per spec.md §6.
func GenerateRunID(clock Clock, entropy EntropySource) string {
	now := clock.Now()
	ms := now.Nanosecond() / int(time.Millisecond)
	return now.Format("20060102-150405") + "-" + padMillis(ms) + "-" + entropy.RandomSuffix()
}

func padMillis(ms int) string {
	digits := "000"
	s := itoa(ms)
	if len(s) >= 3 {
		return s
	}
	return digits[:3-len(s)] + s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
