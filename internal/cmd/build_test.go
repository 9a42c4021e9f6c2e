package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFakeAgent(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake agent script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake agent: %v", err)
	}
	return path
}

func TestBuildCommand_SingleStorySucceeds(t *testing.T) {
	repoRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repoRoot, ".agents", "poe-code-ralph"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, ".agents", "poe-code-ralph", "PROMPT_build.md"), []byte("Story: {{STORY_ID}}"), 0644); err != nil {
		t.Fatal(err)
	}
	planPath := filepath.Join(repoRoot, "plan.yaml")
	if err := os.WriteFile(planPath, []byte("version: 1\nproject: Demo\nstories:\n  - id: US-001\n    title: Ship it\n    status: open\n"), 0644); err != nil {
		t.Fatal(err)
	}

	agentPath := writeFakeAgent(t, `cat >/dev/null
echo '<promise>COMPLETE</promise>'`)

	cmd := NewBuildCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--plan", planPath,
		"--agent", agentPath,
		"--max-iterations", "5",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.Contains(out.String(), "Stories done: [US-001]") {
		t.Errorf("expected US-001 reported done, got %q", out.String())
	}

	plan, err := readPlan(planPath)
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	if plan.Stories[0].Status != "done" {
		t.Errorf("expected story done on disk, got %q", plan.Stories[0].Status)
	}
}

func TestBuildCommand_RequiresPlanFlag(t *testing.T) {
	cmd := NewBuildCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when --plan is omitted")
	}
}
