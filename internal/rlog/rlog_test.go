package rlog

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "")
	l.Debugf("hidden")
	l.Infof("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug suppressed at default level, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected info message present, got %q", out)
	}
}

func TestLogger_DebugLevelShowsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Debugf("a debug line")
	if !strings.Contains(buf.String(), "a debug line") {
		t.Errorf("expected debug line present, got %q", buf.String())
	}
}

func TestLogger_ErrorLevelSuppressesLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "error")
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")
	out := buf.String()
	if strings.Contains(out, "info line") || strings.Contains(out, "warn line") {
		t.Errorf("expected info/warn suppressed at error level, got %q", out)
	}
	if !strings.Contains(out, "error line") {
		t.Errorf("expected error line present, got %q", out)
	}
}

func TestLogger_IncludesTimestampAndLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Infof("hello %s", "world")
	out := buf.String()
	if !regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] `).MatchString(out) {
		t.Errorf("expected [HH:MM:SS] timestamp prefix, got %q", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("expected level label, got %q", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected formatted message, got %q", out)
	}
}

func TestLogger_NilLoggerIsSafeNoOp(t *testing.T) {
	var l *Logger
	l.Infof("should not panic")
}

func TestLogger_Box_WritesUnfiltered(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "error")
	l.Box(RenderOverbakeBox("US-001", "Ship it", 3, 3))
	out := buf.String()
	if !strings.Contains(out, "US-001") {
		t.Errorf("expected box content at error level (unfiltered), got %q", out)
	}
}

func TestRenderOverbakeBox_ContainsStoryAndThreshold(t *testing.T) {
	box := RenderOverbakeBox("US-001", "Ship it", 3, 3)
	for _, want := range []string{"US-001", "Ship it", "threshold: 3", "┌", "┘"} {
		if !strings.Contains(box, want) {
			t.Errorf("expected box to contain %q, got:\n%s", want, box)
		}
	}
}

func TestRenderOverbakeBox_TruncatesLongTitleWithoutPanicking(t *testing.T) {
	longTitle := strings.Repeat("wide-story-title-segment ", 20)
	box := RenderOverbakeBox("US-001", longTitle, 5, 5)
	for _, line := range strings.Split(box, "\n") {
		if strings.Count(line, "│") > 0 && len(line) > 400 {
			t.Errorf("expected truncated box line, got length %d", len(line))
		}
	}
}
