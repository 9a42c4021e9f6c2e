// Package completion detects the end-of-story completion marker in an
// agent invocation's output, per spec.md §4.6. The marker is a literal,
// case-sensitive substring and stdout is the only stream consulted: an
// agent that writes the marker to stderr (or log noise) has not signaled
// completion.
//
// Grounded on the teacher's budget.ParseRateLimitFromOutput shape
// (blueman82/conductor internal/budget) — a single-purpose substring/marker
// scan over raw CLI output performed before any structured parsing — but
// matching a fixed literal rather than a rate-limit phrase set.
package completion

import "strings"

// Marker is the literal substring an agent emits to signal a story is
// complete.
const Marker = "<promise>COMPLETE</promise>"

// Detect reports whether stdout contains Marker. stderr is never consulted.
func Detect(stdout string) bool {
	return strings.Contains(stdout, Marker)
}
