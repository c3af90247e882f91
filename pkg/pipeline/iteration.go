package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/plan"
	"github.com/ralph-build/orchestrator/pkg/store"
)

// outcome is what a single runStory invocation resolved to, driving the
// dispatch loop's next move.
type outcome int

const (
	outcomeAdvance outcome = iota // success, skip, or an in-progress retry already slept
	outcomeStopped
	outcomeRolledBack
	outcomeFatal
)

const (
	maxSplitSize       = 300
	rejectFeedback     = "USER REJECTED via Telegram Mobile."
	minLessonFeedback  = 20
	maxLessonErrorChar = 500
)

// splitStory handles the "task too big" branch of pick_task: it asks the
// LLM for 3-5 sequential subtasks and, on success, replaces story in
// place. Returns true if the plan was mutated (caller should re-dispatch
// without consuming an iteration slot).
func (p *Pipeline) splitStory(ctx context.Context, stage *plan.Stage, story *plan.Story, prj *plan.Plan) bool {
	prompt := fmt.Sprintf("Split the following task into 3 to 5 sequential subtasks. "+
		"Respond with a JSON array of objects each shaped {\"title\":string,\"description\":string,\"priority\":\"critical\"|\"standard\"}.\n\nTitle: %s\nDescription: %s",
		story.Title, story.Description)

	resp, err := p.deps.LLM.Call(ctx, llmclient.RoleJSON, prompt)
	if err != nil {
		p.log.Warn("subtask split LLM call failed; executing original story", "error", err)
		return false
	}

	var raw []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := llmclient.ExtractJSON(resp, &raw); err != nil {
		p.log.Warn("subtask split response unparseable; executing original story", "error", err)
		return false
	}

	subtasks := make([]plan.Story, len(raw))
	for i, r := range raw {
		priority := plan.PriorityStandard
		if r.Priority == string(plan.PriorityCritical) {
			priority = plan.PriorityCritical
		}
		subtasks[i] = plan.Story{
			Title:       r.Title,
			Description: r.Description,
			Priority:    priority,
			IsSubtasked: true,
		}
	}

	if !plan.ReplaceStory(stage, story, subtasks) {
		return false
	}
	if err := p.persistPlan(*prj); err != nil {
		p.log.Error("persisting plan after subtask split", "error", err)
	}
	return true
}

// runStory executes one iteration of the core loop for the current
// active story: prepare_context → run_developer → syntax_gate →
// run_reviewer → human_approval → commit, or the corresponding failure
// path.
func (p *Pipeline) runStory(ctx context.Context, prj *plan.Plan, stage *plan.Stage, story *plan.Story) outcome {
	if p.stopRequested() {
		return outcomeStopped
	}

	ic, err := p.prepareContext(ctx, p.retryCount)
	if err != nil {
		p.log.Error("prepare_context failed", "error", err)
		return outcomeFatal
	}

	devPrompt := developerPrompt(stage, story, ic)
	devResult, err := p.runDeveloper(ctx, devPrompt)
	if err != nil {
		p.log.Error("run_developer failed", "error", err)
		devResult = ""
	}

	devResult = p.runSyntaxGate(ctx, devPrompt, devResult)

	isValid, feedback := p.runReviewer(ctx, stage, story, devResult, ic.tree)

	if isValid && p.params.ChatEnabled && p.params.UseHumanReview {
		approved := p.deps.Oracle.Ask(func(req approval.Request) {
			p.emit("approval_request", map[string]interface{}{"stage": req.Stage, "task": req.Task})
		}, approval.Request{Stage: stage.Name, Task: story.Title})
		if !approved {
			isValid = false
			feedback = rejectFeedback
		}
	}

	if isValid {
		return p.onSuccess(prj, stage, story)
	}
	return p.onFailure(prj, stage, story, feedback)
}

// runDeveloper invokes the LLM in the DEVELOPER role, applies its file
// writes, writes the raw log, and appends the summary to agents.md.
func (p *Pipeline) runDeveloper(ctx context.Context, prompt string) (string, error) {
	resp, err := p.deps.LLM.Call(ctx, llmclient.RoleDeveloper, prompt)
	if err != nil {
		return "", err
	}
	p.applyAndLog(llmclient.RoleDeveloper, prompt, resp)
	return resp, nil
}

func (p *Pipeline) applyAndLog(role llmclient.Role, prompt, resp string) {
	blocks := llmclient.ExtractFileBlocks(resp)
	llmclient.ApplyFileBlocks(p.deps.Workspace, blocks)

	if err := p.writeRawLog(role, prompt, resp); err != nil {
		p.log.Warn("writing raw log failed", "error", err)
	}

	summary := extractSummary(resp)
	entry := fmt.Sprintf("### %s — %s\n\n%s", role, time.Now().UTC().Format(time.RFC3339), summary)
	if err := p.appendAgentsLog(entry); err != nil {
		p.log.Warn("appending agents log failed", "error", err)
	}
}

// runSyntaxGate validates the workspace; on failure it synthesises a
// self-healing prompt and re-invokes the developer once, not counted as
// a retry. Returns the (possibly self-healed) developer result.
func (p *Pipeline) runSyntaxGate(ctx context.Context, devPrompt, devResult string) string {
	result := p.deps.SyntaxGate.Validate(ctx, p.deps.Workspace.Root())
	if result.Valid {
		return devResult
	}

	p.log.Info("syntax gate failed; self-healing", "file", result.File, "error", result.Error)
	healPrompt := selfHealPrompt(devPrompt, result.File, result.Error)
	resp, err := p.deps.LLM.Call(ctx, llmclient.RoleDeveloper, healPrompt)
	if err != nil {
		p.log.Warn("self-heal LLM call failed", "error", err)
		return devResult
	}
	p.applyAndLog(llmclient.RoleDeveloper, healPrompt, resp)
	return resp
}

// runReviewer dispatches the reviewer role when enabled, else falls back
// to checking for the PROMISE_MET marker in the developer's own result.
// Returns validity and, on failure, the feedback text to carry into the
// retry/lesson machinery: the reviewer's own response when one was
// obtained, else devResult.
func (p *Pipeline) runReviewer(ctx context.Context, stage *plan.Stage, story *plan.Story, devResult, tree string) (bool, string) {
	if !p.params.UseReviewerAgent {
		if strings.Contains(devResult, "PROMISE_MET") {
			return true, ""
		}
		return false, devResult
	}

	prompt := reviewerPrompt(stage, story, devResult, tree)
	resp, err := p.deps.LLM.Call(ctx, llmclient.RoleReviewer, prompt)
	if err != nil {
		p.log.Warn("run_reviewer LLM call failed", "error", err)
		return false, devResult
	}
	if err := p.writeRawLog(llmclient.RoleReviewer, prompt, resp); err != nil {
		p.log.Warn("writing reviewer raw log failed", "error", err)
	}

	if strings.Contains(resp, "REVIEW_PASSED") {
		return true, ""
	}
	return false, resp
}

// onSuccess marks the story passed, persists the plan, and commits.
func (p *Pipeline) onSuccess(prj *plan.Plan, stage *plan.Stage, story *plan.Story) outcome {
	plan.MarkStoryPassed(story)
	p.retryCount = 0
	p.lastError = ""
	plan.MarkStageCompleteIfDone(stage)

	if err := p.persistPlan(*prj); err != nil {
		p.log.Error("persisting plan after success", "error", err)
		return outcomeFatal
	}

	ctx := context.Background()
	msg := fmt.Sprintf("Completed: %s - %s", stage.Name, story.Title)
	if err := p.deps.VCS.AddAndCommit(ctx, msg); err != nil {
		p.log.Error("commit after success failed", "error", err)
	}

	p.bumpIteration()
	p.emit("success", map[string]interface{}{"stage": stage.Name, "task": story.Title})

	return p.endOfIterationSleep()
}

// onFailure records the lesson, bumps the retry count, and decides
// whether to retry, skip, or escalate.
func (p *Pipeline) onFailure(prj *plan.Plan, stage *plan.Stage, story *plan.Story, feedback string) outcome {
	p.retryCount++
	p.lastError = feedback

	if len(feedback) > minLessonFeedback {
		errText := feedback
		if len(errText) > maxLessonErrorChar {
			errText = errText[:maxLessonErrorChar]
		}
		lesson := store.Lesson{
			Project:   p.projectID,
			Stage:     stage.Name,
			Task:      story.Title,
			Error:     errText,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		if err := p.deps.Store.SaveLesson(lesson); err != nil {
			p.log.Warn("saving lesson failed", "error", err)
		}
	}

	if p.retryCount >= p.params.MaxRetriesPerTask {
		if story.Priority != plan.PriorityCritical {
			plan.MarkStorySkipped(story, feedback)
			p.retryCount = 0
			if err := p.persistPlan(*prj); err != nil {
				p.log.Error("persisting plan after skip", "error", err)
				return outcomeFatal
			}
			p.bumpIteration()
			p.emit("skip", map[string]interface{}{"stage": stage.Name, "task": story.Title, "reason": feedback})
			return p.endOfIterationSleep()
		}

		ctx := context.Background()
		if err := p.deps.VCS.RollbackToLastCommit(ctx); err != nil {
			p.log.Error("rollback after critical failure failed", "error", err)
		}
		p.emit("error", map[string]interface{}{"stage": stage.Name, "task": story.Title, "message": feedback})
		return outcomeRolledBack
	}

	// Retry-with-backoff is not itself a completed iteration — only the
	// backoff wait applies here, with no additional inter-iteration pause
	// folded in on top of it.
	wait := p.backoff(p.retryCount)
	if p.sleepOrStop(wait) {
		return outcomeStopped
	}
	return outcomeAdvance
}

// endOfIterationSleep applies the unconditional inter-iteration pause
// that bounds throughput.
func (p *Pipeline) endOfIterationSleep() outcome {
	if p.sleepOrStop(p.params.BaseSleepTime) {
		return outcomeStopped
	}
	return outcomeAdvance
}

func (p *Pipeline) bumpIteration() {
	proj, ok := p.deps.Store.GetProject(p.projectID)
	if !ok {
		return
	}
	proj.Iteration++
	if err := p.deps.Store.SaveProject(proj); err != nil {
		p.log.Error("bumping iteration failed", "error", err)
	}
}
