package overbake

import "testing"

func TestNew_RejectsInvalidThreshold(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for threshold 0")
	}
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for negative threshold")
	}
}

func TestRecord_WarnsOnceAtThreshold(t *testing.T) {
	d, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 1; i < 3; i++ {
		ev := d.Record("US-001", StatusFailure)
		if ev.Overbaked || ev.ShouldWarn {
			t.Fatalf("attempt %d: expected no overbake/warn yet, got %+v", i, ev)
		}
	}

	ev := d.Record("US-001", StatusFailure)
	if !ev.Overbaked || !ev.ShouldWarn {
		t.Fatalf("expected overbaked+warn at threshold, got %+v", ev)
	}

	ev = d.Record("US-001", StatusFailure)
	if !ev.Overbaked {
		t.Fatal("expected still overbaked past threshold")
	}
	if ev.ShouldWarn {
		t.Fatal("expected no repeat warning within the same streak")
	}
	if ev.ConsecutiveFailures != 4 {
		t.Fatalf("expected counter to keep growing past threshold, got %d", ev.ConsecutiveFailures)
	}
}

func TestRecord_NonFailureResetsStreakAndWarnFlag(t *testing.T) {
	d, _ := New(3)
	d.Record("US-001", StatusFailure)
	d.Record("US-001", StatusFailure)
	d.Record("US-001", StatusFailure)
	if d.ConsecutiveFailures("US-001") != 3 {
		t.Fatalf("expected streak 3, got %d", d.ConsecutiveFailures("US-001"))
	}

	d.Record("US-001", StatusSuccess)
	if d.ConsecutiveFailures("US-001") != 0 {
		t.Fatalf("expected streak reset to 0, got %d", d.ConsecutiveFailures("US-001"))
	}

	d.Record("US-001", StatusFailure)
	d.Record("US-001", StatusFailure)
	ev := d.Record("US-001", StatusFailure)
	if !ev.ShouldWarn {
		t.Fatal("expected warn flag to have reset, so a fresh streak re-warns")
	}
}

func TestRecord_IncompleteAlsoResetsStreak(t *testing.T) {
	d, _ := New(3)
	d.Record("US-001", StatusFailure)
	d.Record("US-001", StatusIncomplete)
	if d.ConsecutiveFailures("US-001") != 0 {
		t.Fatalf("expected incomplete to reset streak like success, got %d", d.ConsecutiveFailures("US-001"))
	}
}

func TestRecord_TracksStoriesIndependently(t *testing.T) {
	d, _ := New(DefaultThreshold)
	d.Record("US-001", StatusFailure)
	d.Record("US-001", StatusFailure)
	if d.ConsecutiveFailures("US-002") != 0 {
		t.Fatalf("expected US-002 unaffected, got %d", d.ConsecutiveFailures("US-002"))
	}
}

func TestConsecutiveFailures_ZeroForUnknownStory(t *testing.T) {
	d, _ := New(DefaultThreshold)
	if d.ConsecutiveFailures("US-999") != 0 {
		t.Fatal("expected 0 for a story never recorded")
	}
}
