package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/poe-code/ralph/internal/agentinvoker"
	"github.com/poe-code/ralph/internal/artifacts"
	"github.com/poe-code/ralph/internal/buildloop"
	"github.com/poe-code/ralph/internal/history"
	"github.com/poe-code/ralph/internal/overbake"
	"github.com/poe-code/ralph/internal/planstore"
	"github.com/poe-code/ralph/internal/rlconfig"
	"github.com/poe-code/ralph/internal/rlog"
	"github.com/poe-code/ralph/internal/worktree"
)

// NewBuildCommand creates the build command, which runs the build loop to
// completion against a single plan file.
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the build loop against a plan file",
		Long: `Run the build loop: select the next actionable story, render its
prompt, spawn the coding agent, classify the outcome, and repeat until the
plan has no actionable story left, the operator aborts after a story
overbakes, or the iteration limit is reached.`,
		RunE: runBuildCommand,
	}

	cmd.Flags().String("plan", "", "Path to the plan file (required)")
	cmd.Flags().String("config", "", "Path to config file (default: .poe-code-ralph/config.yaml)")
	cmd.Flags().Int("max-iterations", 0, "Maximum iterations to run (0 = use config default)")
	cmd.Flags().Int("max-failures", 0, "Consecutive-failure overbake threshold (0 = use config default)")
	cmd.Flags().String("agent", "", "Coding-agent binary to invoke (default: claude)")
	cmd.Flags().Bool("worktree", false, "Run inside an isolated git worktree")
	cmd.Flags().String("worktree-name", "", "Worktree name (default: derived from plan file name)")
	cmd.Flags().Bool("pause-on-overbake", false, "Prompt the operator when a story overbakes")
	cmd.Flags().Bool("no-commit", false, "Pass NO_COMMIT=true to the agent prompt")
	cmd.Flags().Int("stale-seconds", 0, "Seconds before an in_progress story is reclaimable (0 = use config default)")
	cmd.Flags().String("progress-path", "", "Path to the progress file (default: .poe-code-ralph/progress.md)")
	cmd.Flags().String("guardrails-path", "", "Path to the guardrails file (default: .poe-code-ralph/guardrails.md)")
	cmd.Flags().String("activity-log-path", "", "Path to the activity log (default: .poe-code-ralph/activity.log)")
	cmd.MarkFlagRequired("plan")

	return cmd
}

func runBuildCommand(cmd *cobra.Command, args []string) error {
	planPath, _ := cmd.Flags().GetString("plan")
	configPath, _ := cmd.Flags().GetString("config")
	repoRoot, err := filepath.Abs(filepath.Dir(planPath))
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(repoRoot, ".poe-code-ralph", "config.yaml")
	}
	fileCfg, err := rlconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	if maxIterations <= 0 {
		maxIterations = fileCfg.MaxIterations
	}
	maxFailures, _ := cmd.Flags().GetInt("max-failures")
	if maxFailures <= 0 {
		maxFailures = fileCfg.MaxFailures
	}
	agent, _ := cmd.Flags().GetString("agent")
	if agent == "" {
		agent = fileCfg.Agent
	}
	staleSeconds, _ := cmd.Flags().GetInt("stale-seconds")
	if staleSeconds <= 0 {
		staleSeconds = fileCfg.StaleSeconds
	}
	worktreeEnabled, _ := cmd.Flags().GetBool("worktree")
	worktreeName, _ := cmd.Flags().GetString("worktree-name")
	pauseOnOverbake, _ := cmd.Flags().GetBool("pause-on-overbake")
	if cmd.Flags().Changed("pause-on-overbake") {
		fileCfg.PauseOnOverbake = pauseOnOverbake
	}
	noCommit, _ := cmd.Flags().GetBool("no-commit")

	progressPath, _ := cmd.Flags().GetString("progress-path")
	if progressPath == "" {
		progressPath = filepath.Join(repoRoot, ".poe-code-ralph", "progress.md")
	}
	guardrailsPath, _ := cmd.Flags().GetString("guardrails-path")
	if guardrailsPath == "" {
		guardrailsPath = filepath.Join(repoRoot, ".poe-code-ralph", "guardrails.md")
	}
	activityLogPath, _ := cmd.Flags().GetString("activity-log-path")
	if activityLogPath == "" {
		activityLogPath = filepath.Join(repoRoot, ".poe-code-ralph", "activity.log")
	}

	logger := rlog.New(os.Stderr, fileCfg.Console.LogLevel)

	overbakeDetector, err := overbake.New(maxFailures)
	if err != nil {
		return fmt.Errorf("construct overbake detector: %w", err)
	}
	artifactWriter, err := artifacts.New(repoRoot)
	if err != nil {
		return fmt.Errorf("construct artifact writer: %w", err)
	}

	invoker := agentinvoker.New()
	invoker.Command = agent

	caps := buildloop.Capabilities{
		Clock:        buildloop.SystemClock{},
		Entropy:      buildloop.UUIDEntropySource{},
		Prompter:     buildloop.NewTerminalPrompter(readLineFromStdin),
		Logger:       logger,
		PlanStore:    planstore.New(),
		AgentInvoker: invoker,
		Overbake:     overbakeDetector,
		Artifacts:    artifactWriter,
		Worktree:     worktree.New(repoRoot),
	}

	if fileCfg.History.Enabled {
		historyStore, err := history.Open(filepath.Join(repoRoot, fileCfg.History.DBPath))
		if err != nil {
			logger.Warnf("history store unavailable: %v", err)
		} else {
			defer historyStore.Close()
			caps.History = historyStore
		}
	}

	opts := buildloop.Options{
		PlanPath:        planPath,
		ProgressPath:    progressPath,
		GuardrailsPath:  guardrailsPath,
		ErrorsLogPath:   artifactWriter.ErrorsLogPath,
		ActivityLogPath: activityLogPath,
		MaxIterations:   maxIterations,
		MaxFailures:     maxFailures,
		PauseOnOverbake: fileCfg.PauseOnOverbake,
		NoCommit:        noCommit || fileCfg.NoCommit,
		Agent:           agent,
		StaleSeconds:    staleSeconds,
		Cwd:             repoRoot,
		Worktree: buildloop.WorktreeOptions{
			Enabled: worktreeEnabled || fileCfg.Worktree.Enabled,
			Name:    worktreeName,
		},
	}

	result, err := buildloop.Run(cmd.Context(), caps, opts)
	if err != nil {
		return fmt.Errorf("build loop: %w", err)
	}

	printSummary(cmd, result)
	return nil
}

func printSummary(cmd *cobra.Command, result *buildloop.BuildResult) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	fmt.Fprintf(out, "\n")
	bold.Fprintf(out, "Run %s\n", result.RunID)
	fmt.Fprintf(out, "  Iterations completed: %d\n", result.IterationsCompleted)
	fmt.Fprintf(out, "  Stop reason: %s\n", result.StopReason)
	fmt.Fprintf(out, "  Stories done: %v\n", result.StoriesDone)
	if result.WorktreeBranch != "" {
		fmt.Fprintf(out, "  Worktree branch: %s\n", result.WorktreeBranch)
	}
}

func readLineFromStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
