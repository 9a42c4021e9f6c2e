package buildloop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poe-code/ralph/internal/agentinvoker"
	"github.com/poe-code/ralph/internal/artifacts"
	"github.com/poe-code/ralph/internal/completion"
	"github.com/poe-code/ralph/internal/history"
	"github.com/poe-code/ralph/internal/overbake"
	"github.com/poe-code/ralph/internal/planmodel"
	"github.com/poe-code/ralph/internal/planstore"
	"github.com/poe-code/ralph/internal/promptrender"
	"github.com/poe-code/ralph/internal/rlerr"
	"github.com/poe-code/ralph/internal/rlog"
	"github.com/poe-code/ralph/internal/scheduler"
	"github.com/poe-code/ralph/internal/worktree"
)

// Capabilities bundles every injected collaborator the loop needs, per
// spec.md §9. Production code populates every field with a real
// implementation; tests substitute fakes for AgentInvoker and
// OperatorPrompter in particular, since those are the loop's only
// interactions with the outside world beyond the filesystem.
type Capabilities struct {
	Clock        Clock
	Entropy      EntropySource
	Prompter     OperatorPrompter
	Logger       *rlog.Logger
	PlanStore    *planstore.Store
	AgentInvoker AgentSpawner
	Overbake     *overbake.Detector
	Artifacts    *artifacts.Writer
	Worktree     *worktree.Coordinator
	// History is optional: a nil store simply skips history recording. A
	// history-store write failure never fails the run, per spec.md's
	// ambient-stack policy for this best-effort feature.
	History *history.Store
}

// Run executes the build loop to completion, per spec.md §4.10.
func Run(ctx context.Context, caps Capabilities, opts Options) (*BuildResult, error) {
	runID := opts.RunID
	if runID == "" {
		runID = GenerateRunID(caps.Clock, caps.Entropy)
	}
	runStarted := caps.Clock.Now()

	planPath := opts.PlanPath
	cwd := opts.Cwd
	var worktreeEntry *worktree.Entry

	if opts.Worktree.Enabled {
		entry, worktreePlanPath, err := caps.Worktree.Create(ctx, planPath, opts.Worktree.Name, opts.Agent)
		if err != nil {
			return nil, rlerr.New(rlerr.WorktreeSetupFailure, err)
		}
		worktreeEntry = entry
		planPath = worktreePlanPath
		cwd = entry.Path
	}

	templatePath := filepath.Join(opts.Cwd, ".agents", "poe-code-ralph", "PROMPT_build.md")
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, rlerr.New(rlerr.MissingTemplate, err)
	}

	result := &BuildResult{RunID: runID}
	ignoreStoryIDs := make(map[string]bool)

	for i := 1; i <= opts.MaxIterations; i++ {
		iterResult, decision, stop, err := runIteration(ctx, caps, opts, runID, i, planPath, cwd, string(template), ignoreStoryIDs)
		if err != nil {
			return nil, err
		}
		if iterResult == nil {
			// no_actionable_stories: SelectStory found nothing.
			result.StopReason = StopNoActionableStories
			break
		}

		result.Iterations = append(result.Iterations, *iterResult)
		result.IterationsCompleted = i
		if iterResult.Status == IterationSuccess {
			result.StoriesDone = append(result.StoriesDone, iterResult.StoryID)
		}

		if caps.History != nil {
			if err := caps.History.RecordIteration(history.IterationRecord{
				RunID:      runID,
				Iteration:  iterResult.Iteration,
				StoryID:    iterResult.StoryID,
				StoryTitle: iterResult.StoryTitle,
				Status:     string(iterResult.Status),
				StartedAt:  iterResult.Started,
				EndedAt:    iterResult.Ended,
				LogPath:    iterResult.LogPath,
				MetaPath:   iterResult.MetaPath,
			}); err != nil {
				caps.Logger.Warnf("history: record iteration: %v", err)
			}
		}

		if decision == DecisionAbort {
			result.StopReason = StopOverbakeAbort
			break
		}
		if decision == DecisionSkip {
			ignoreStoryIDs[iterResult.StoryID] = true
		}
		if stop {
			result.StopReason = StopNoActionableStories
			break
		}
		if i == opts.MaxIterations {
			result.StopReason = StopMaxIterations
		}
	}

	if opts.Worktree.Enabled {
		hint, err := caps.Worktree.Finish(worktreeEntry, len(result.StoriesDone) > 0)
		if err != nil {
			caps.Logger.Warnf("worktree finish: %v", err)
		} else {
			fmt.Println(hint)
		}
		result.WorktreeBranch = worktreeEntry.Branch
	}

	if caps.History != nil {
		if err := caps.History.RecordRun(history.RunRecord{
			RunID:               runID,
			PlanPath:            opts.PlanPath,
			StartedAt:           runStarted,
			EndedAt:             caps.Clock.Now(),
			StopReason:          string(result.StopReason),
			IterationsCompleted: result.IterationsCompleted,
			StoriesDone:         result.StoriesDone,
		}); err != nil {
			caps.Logger.Warnf("history: record run: %v", err)
		}
	}

	return result, nil
}

// runIteration runs one SelectStory..Decide cycle. A nil *IterationResult
// with a nil error means the scheduler found no actionable story
// (terminal). stop reports whether Decide detected a subsequent
// no_actionable_stories condition (the loop's own selection for the *next*
// iteration already came up empty because the just-finished story was the
// last one available).
func runIteration(ctx context.Context, caps Capabilities, opts Options, runID string, iteration int, planPath, cwd, template string, ignoreStoryIDs map[string]bool) (*IterationResult, OverbakeDecision, bool, error) {
	now := caps.Clock.Now()

	plan, err := caps.PlanStore.ReadUnderLock(planPath)
	if err != nil {
		return nil, "", false, rlerr.New(rlerr.InvalidPlan, err)
	}

	story := scheduler.Select(plan, now, opts.StaleSeconds, ignoreStoryIDs)
	if story == nil {
		return nil, "", false, nil
	}
	storyID := story.ID

	_, err = caps.PlanStore.MutateUnderLock(planPath, func(p *planmodel.Plan) (*planmodel.Plan, error) {
		s := p.StoryByID(storyID)
		s.Status = planmodel.StatusInProgress
		if s.StartedAt == nil {
			s.StartedAt = &now
		}
		s.CompletedAt = nil
		s.UpdatedAt = &now
		return p, nil
	})
	if err != nil {
		return nil, "", false, rlerr.New(rlerr.LockUnavailable, err)
	}

	vars := buildVariables(opts, runID, iteration, planPath, plan, story)
	rendered := promptrender.Render(template, vars.ToMap())

	cachePath := filepath.Join(opts.Cwd, ".poe-code-ralph", ".tmp", fmt.Sprintf("prompt-build-%s-iter-%d.md", runID, iteration))
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err == nil {
		_ = os.WriteFile(cachePath, []byte(rendered), 0644)
	}

	var headBefore string
	if opts.Worktree.Enabled {
		headBefore = caps.Worktree.HeadCommit(ctx, cwd)
	}

	invokeResult, invokeErr := caps.AgentInvoker.Invoke(ctx, rendered)

	var status IterationStatus
	var spawnFailure bool
	if invokeErr != nil {
		status = IterationFailure
		spawnFailure = true
		if invokeResult == nil {
			invokeResult = &agentinvoker.Result{Stderr: invokeErr.Error()}
		}
	} else if invokeResult.TimedOut || invokeResult.ExitCode != 0 {
		status = IterationFailure
		spawnFailure = true
	} else if completion.Detect(invokeResult.Stdout) {
		status = IterationSuccess
	} else {
		status = IterationIncomplete
	}

	ended := caps.Clock.Now()
	var gitInfo artifacts.GitInfo
	if opts.Worktree.Enabled {
		gitInfo = caps.Worktree.CaptureGitDelta(ctx, cwd, headBefore)
	}
	meta := artifacts.Meta{
		RunID:              runID,
		Iteration:          iteration,
		StoryID:            storyID,
		StoryTitle:         story.Title,
		Status:             string(status),
		Started:            now,
		Ended:              ended,
		Stdout:             invokeResult.Stdout,
		Stderr:             invokeResult.Stderr,
		SpawnOrExitFailure: spawnFailure,
		Git:                gitInfo,
	}

	logPath, err := caps.Artifacts.WriteLog(meta)
	if err != nil {
		caps.Logger.Warnf("write iteration log: %v", err)
	}
	metaPath, err := caps.Artifacts.WriteSummary(meta, logPath)
	if err != nil {
		caps.Logger.Warnf("write iteration summary: %v", err)
	}

	if status == IterationFailure && strings.TrimSpace(invokeResult.Stderr) != "" {
		if err := caps.Artifacts.AppendError(meta); err != nil {
			caps.Logger.Warnf("append errors log: %v", err)
		}
	}

	overbakeStatus := overbake.StatusSuccess
	if status == IterationFailure {
		overbakeStatus = overbake.StatusFailure
	} else if status == IterationIncomplete {
		overbakeStatus = overbake.StatusIncomplete
	}
	event := caps.Overbake.Record(storyID, overbakeStatus)

	decision := DecisionContinue
	if event.ShouldWarn {
		caps.Logger.Warnf("story %s has failed %d consecutive iterations (threshold %d)", storyID, event.ConsecutiveFailures, event.Threshold)
		if err := caps.Artifacts.AppendOverbakeWarning(storyID, story.Title, event.ConsecutiveFailures, event.Threshold); err != nil {
			caps.Logger.Warnf("append overbake warning: %v", err)
		}
		if opts.PauseOnOverbake {
			caps.Logger.Box(rlog.RenderOverbakeBox(storyID, story.Title, event.ConsecutiveFailures, event.Threshold))
			decision = caps.Prompter.Prompt(storyID, event.ConsecutiveFailures)
		}
	}

	updateNow := caps.Clock.Now()
	_, err = caps.PlanStore.MutateUnderLock(planPath, func(p *planmodel.Plan) (*planmodel.Plan, error) {
		s := p.StoryByID(storyID)
		if status == IterationSuccess {
			s.Status = planmodel.StatusDone
			s.CompletedAt = &updateNow
		} else {
			s.Status = planmodel.StatusOpen
		}
		s.UpdatedAt = &updateNow
		return p, nil
	})
	if err != nil {
		return nil, "", false, rlerr.New(rlerr.LockUnavailable, err)
	}

	result := &IterationResult{
		Iteration:  iteration,
		StoryID:    storyID,
		StoryTitle: story.Title,
		Status:     status,
		LogPath:    logPath,
		MetaPath:   metaPath,
		Started:    now,
		Ended:      ended,
	}

	// Decide: detect whether another actionable story remains, for the
	// loop's no_actionable_stories termination check ahead of max_iterations.
	finalPlan, err := caps.PlanStore.ReadUnderLock(planPath)
	stop := false
	if err == nil {
		effectiveIgnore := ignoreStoryIDs
		if decision == DecisionSkip {
			effectiveIgnore = cloneIgnoreSet(ignoreStoryIDs, storyID)
		}
		stop = scheduler.Select(finalPlan, caps.Clock.Now(), opts.StaleSeconds, effectiveIgnore) == nil
	}

	return result, decision, stop, nil
}

func cloneIgnoreSet(base map[string]bool, add string) map[string]bool {
	out := make(map[string]bool, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[add] = true
	return out
}

func buildVariables(opts Options, runID string, iteration int, planPath string, plan *planmodel.Plan, story *planmodel.Story) promptrender.Variables {
	return promptrender.Variables{
		PlanPath:        mustAbs(planPath),
		ProgressPath:    opts.ProgressPath,
		GuardrailsPath:  opts.GuardrailsPath,
		ErrorsLogPath:   opts.ErrorsLogPath,
		ActivityLogPath: opts.ActivityLogPath,
		RepoRoot:        opts.Cwd,
		NoCommit:        opts.NoCommit,
		RunID:           runID,
		Iteration:       iteration,
		RunLogPath:      filepath.Join(opts.Cwd, ".poe-code-ralph", "runs", fmt.Sprintf("run-%s-iter-%d.log", runID, iteration)),
		RunMetaPath:     filepath.Join(opts.Cwd, ".poe-code-ralph", "runs", fmt.Sprintf("run-%s-iter-%d.md", runID, iteration)),
		StoryID:         story.ID,
		StoryTitle:      story.Title,
		StoryBlock: promptrender.StoryBlock(
			story.ID, story.Title, string(story.Status), story.DependsOn, story.Description, story.AcceptanceCriteria,
		),
		QualityGates: promptrender.QualityGatesBlock(plan.QualityGates),
	}
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
