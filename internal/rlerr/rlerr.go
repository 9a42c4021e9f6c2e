// Package rlerr defines the build loop's error taxonomy, per spec.md §7.
// Kinds are not Go types but a closed set of labels attached to a wrapping
// error, so callers can branch on Kind without type assertions on a
// proliferation of error structs — grounded on the teacher's single
// ErrRateLimit error-value shape (blueman82/conductor
// internal/agent/invoker.go) but generalized into a labeled kind rather
// than one bespoke type per failure mode, since Ralph's taxonomy has six
// error kinds to conductor's one. An operator abort is not an error kind;
// the build loop reports it through its stop reason.
package rlerr

import "fmt"

// Kind is one of the error taxonomy members from spec.md §7.
type Kind string

const (
	InvalidPlan          Kind = "InvalidPlan"
	LockUnavailable      Kind = "LockUnavailable"
	MissingTemplate      Kind = "MissingTemplate"
	AgentSpawnFailure    Kind = "AgentSpawnFailure"
	AgentRuntimeError    Kind = "AgentRuntimeError"
	WorktreeSetupFailure Kind = "WorktreeSetupFailure"
)

// Immediate reports whether errors of this kind must surface immediately
// rather than being converted into a failure iteration, per spec.md §7's
// propagation policy.
func (k Kind) Immediate() bool {
	switch k {
	case InvalidPlan, LockUnavailable, MissingTemplate, WorktreeSetupFailure:
		return true
	default:
		return false
	}
}

// Error wraps an underlying error with its taxonomy Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf constructs an *Error of the given kind from a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
