package rlconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxIterations != 50 {
		t.Errorf("MaxIterations = %d, want 50", cfg.MaxIterations)
	}
	if cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", cfg.MaxFailures)
	}
	if !cfg.PauseOnOverbake {
		t.Errorf("PauseOnOverbake = false, want true")
	}
	if cfg.Agent != "claude" {
		t.Errorf("Agent = %q, want %q", cfg.Agent, "claude")
	}
	if !cfg.History.Enabled {
		t.Errorf("History.Enabled = false, want true")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxIterations != Default().MaxIterations {
		t.Errorf("expected defaults for missing file, got %+v", cfg)
	}
}

func TestLoad_MergesNonZeroFileValuesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
max_iterations: 10
agent: codex
console:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.MaxIterations)
	}
	if cfg.Agent != "codex" {
		t.Errorf("Agent = %q, want codex", cfg.Agent)
	}
	if cfg.Console.LogLevel != "debug" {
		t.Errorf("Console.LogLevel = %q, want debug", cfg.Console.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want default 3", cfg.MaxFailures)
	}
}

func TestLoad_BooleansOnlyTurnOn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("no_commit: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.NoCommit {
		t.Errorf("expected NoCommit turned on by file")
	}
	if !cfg.PauseOnOverbake {
		t.Errorf("expected PauseOnOverbake to keep its default true, got false")
	}
}

func TestLoad_HistoryEnabledCanBeExplicitlyDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "history:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.History.Enabled {
		t.Errorf("expected explicit history.enabled: false to disable history")
	}
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: [["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
