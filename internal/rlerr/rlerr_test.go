package rlerr

import (
	"errors"
	"testing"
)

func TestImmediate_ClassifiesKindsPerPropagationPolicy(t *testing.T) {
	immediate := []Kind{InvalidPlan, LockUnavailable, MissingTemplate, WorktreeSetupFailure}
	for _, k := range immediate {
		if !k.Immediate() {
			t.Errorf("expected %s to be immediate", k)
		}
	}
	deferred := []Kind{AgentSpawnFailure, AgentRuntimeError}
	for _, k := range deferred {
		if k.Immediate() {
			t.Errorf("expected %s to be a deferred (iteration-level) failure", k)
		}
	}
}

func TestError_UnwrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("boom")
	err := New(AgentSpawnFailure, underlying)
	if !errors.Is(err, underlying) {
		t.Errorf("expected errors.Is to find the wrapped error")
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(InvalidPlan, "story %q duplicated", "US-001")
	if err.Error() != `InvalidPlan: story "US-001" duplicated` {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
