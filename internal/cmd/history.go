package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/poe-code/ralph/internal/history"
	"github.com/poe-code/ralph/internal/rlconfig"
)

// NewHistoryCommand creates the history command, which opens the
// run-history SQLite store located relative to the plan file's directory and
// prints every run recorded in it. Runs are not filtered by plan path, so
// runs of other plans sharing that store are listed too.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <plan-path>",
		Short: "List build-loop runs recorded in the history store beside a plan file",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .poe-code-ralph/config.yaml)")
	return cmd
}

func runHistoryCommand(cmd *cobra.Command, args []string) error {
	planPath := args[0]
	repoRoot, err := filepath.Abs(filepath.Dir(planPath))
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(repoRoot, ".poe-code-ralph", "config.yaml")
	}
	cfg, err := rlconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := history.Open(filepath.Join(repoRoot, cfg.History.DBPath))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return fmt.Errorf("read run history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no recorded runs")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(out, "%s  plan=%s  iterations=%d  stop=%s  done=%v\n",
			run.RunID, run.PlanPath, run.IterationsCompleted, run.StopReason, run.StoriesDone)
	}
	return nil
}
