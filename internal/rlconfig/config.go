// Package rlconfig loads build-loop defaults from a YAML config file,
// merging file values over built-in defaults. Grounded on the teacher's
// internal/config.LoadConfig (blueman82/conductor): same "defaults, then
// overlay non-zero file values" merge and the same "missing file means
// defaults, malformed file is an error" contract, trimmed from conductor's
// multi-agent QC/learning/feedback config surface down to the Build Loop's
// options.
package rlconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal log output, mirroring the teacher's
// ConsoleConfig. LogLevel sets internal/rlog's level filter; EnableColor is
// not merged by Load nor read by internal/rlog, which enables color from TTY
// detection alone.
type ConsoleConfig struct {
	EnableColor bool   `yaml:"enable_color"`
	LogLevel    string `yaml:"log_level"`
}

// WorktreeConfig controls default worktree isolation behavior.
type WorktreeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HistoryConfig controls the run-history SQLite store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Config is the build loop's YAML-configurable defaults, overridable by CLI
// flags at the command layer.
type Config struct {
	MaxIterations    int            `yaml:"max_iterations"`
	MaxFailures      int            `yaml:"max_failures"`
	PauseOnOverbake  bool           `yaml:"pause_on_overbake"`
	NoCommit         bool           `yaml:"no_commit"`
	Agent            string         `yaml:"agent"`
	StaleSeconds     int            `yaml:"stale_seconds"`
	Console          ConsoleConfig  `yaml:"console"`
	Worktree         WorktreeConfig `yaml:"worktree"`
	History          HistoryConfig  `yaml:"history"`
}

// Default returns a Config with Ralph's built-in defaults.
func Default() *Config {
	return &Config{
		MaxIterations:    50,
		MaxFailures:      3,
		PauseOnOverbake:  true,
		NoCommit:         false,
		Agent:            "claude",
		StaleSeconds:     900,
		Console: ConsoleConfig{
			EnableColor: true,
			LogLevel:    "info",
		},
		Worktree: WorktreeConfig{Enabled: false},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".poe-code-ralph/history.db",
		},
	}
}

// Load reads path and merges its values over Default(). A missing file is
// not an error — Default() is returned unchanged. A malformed file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("rlconfig: read %s: %w", path, err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("rlconfig: parse %s: %w", path, err)
	}

	if fromFile.MaxIterations != 0 {
		cfg.MaxIterations = fromFile.MaxIterations
	}
	if fromFile.MaxFailures != 0 {
		cfg.MaxFailures = fromFile.MaxFailures
	}
	if fromFile.Agent != "" {
		cfg.Agent = fromFile.Agent
	}
	if fromFile.StaleSeconds != 0 {
		cfg.StaleSeconds = fromFile.StaleSeconds
	}
	if fromFile.Console.LogLevel != "" {
		cfg.Console.LogLevel = fromFile.Console.LogLevel
	}
	if fromFile.History.DBPath != "" {
		cfg.History.DBPath = fromFile.History.DBPath
	}
	// These bools can only be turned on by the file, not off — a file can't
	// distinguish "explicitly false" from "absent" without a raw-map probe,
	// and Ralph's defaults (pauseOnOverbake=true, worktree/no-commit=false)
	// make "turn it on" the only direction worth expressing in config.
	if fromFile.PauseOnOverbake {
		cfg.PauseOnOverbake = true
	}
	if fromFile.NoCommit {
		cfg.NoCommit = true
	}
	if fromFile.Worktree.Enabled {
		cfg.Worktree.Enabled = true
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		if historySection, ok := raw["history"].(map[string]interface{}); ok {
			if _, ok := historySection["enabled"]; ok {
				cfg.History.Enabled = fromFile.History.Enabled
			}
		}
	}

	return cfg, nil
}
