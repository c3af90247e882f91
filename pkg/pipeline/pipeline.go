// Package pipeline implements the per-project state machine: the
// iteration loop that drives pick-task → prepare-context → developer →
// syntax-gate → reviewer → human-approval → commit, with retry/backoff,
// skip, and rollback on failure.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/plan"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/syntaxgate"
	"github.com/ralph-build/orchestrator/pkg/vcsgate"
	"github.com/ralph-build/orchestrator/pkg/workspace"
)

// Strategy is the developer-prompt strategy chosen in prepare_context.
type Strategy string

const (
	StrategyPatch   Strategy = "PATCH"
	StrategyRewrite Strategy = "REWRITE"
)

// Params are the loaded, per-project parameters snapshotted at start.
type Params struct {
	MaxIterations     int
	MaxRetriesPerTask int
	BaseSleepTime     time.Duration
	BackoffMultiplier float64
	UseReviewerAgent  bool
	UseHumanReview    bool
	ChatEnabled       bool
}

// Broadcaster emits state-transition envelopes to dashboard observers.
// Defined as an interface here (rather than depending on *broadcast.Manager
// directly) so the pipeline package stays testable with a fake.
type Broadcaster interface {
	Broadcast(env broadcast.Envelope)
}

// Installer fires the fire-and-forget dependency install when a manual
// change touches the dependency manifest. Errors are not observable by
// the loop; it must not block on the install's outcome.
type Installer interface {
	Install(root string)
}

// Dependencies bundles every collaborator the Pipeline needs. All fields
// are required except Installer (nil is a no-op).
type Dependencies struct {
	Store       *store.Store
	VCS         *vcsgate.Gate
	Workspace   *workspace.Workspace
	LLM         *llmclient.Client
	SyntaxGate  *syntaxgate.Checker
	Oracle      *approval.Oracle
	Broadcast   Broadcaster
	Installer   Installer
}

// Pipeline is the per-project state machine. One instance lives in the
// Registry per running project; within one project execution is strictly
// sequential.
type Pipeline struct {
	projectID string
	params    Params
	deps      Dependencies
	log       *slog.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	iteration  int
	retryCount int
	lastError  string
}

// New constructs a Pipeline for projectID. It does not start the loop —
// call Start.
func New(projectID string, params Params, deps Dependencies) *Pipeline {
	return &Pipeline{
		projectID: projectID,
		params:    params,
		deps:      deps,
		log:       slog.Default().With("component", "pipeline", "project_id", projectID),
	}
}

// ProjectID implements registry.Pipeline.
func (p *Pipeline) ProjectID() string { return p.projectID }

// IsRunning implements registry.Pipeline.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start spawns the iteration loop in a goroutine. Safe to call when
// already running (no-op).
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.run()
}

// Stop requests cessation at the next iteration boundary. A pending
// Approval Oracle rendezvous is resolved to reject so the worker is
// freed rather than left dangling.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.mu.Unlock()

	if p.deps.Oracle != nil {
		p.deps.Oracle.Cancel()
	}

	<-p.doneCh
}

func (p *Pipeline) stopRequested() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Pipeline) setNotRunning() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	close(p.doneCh)
}

func (p *Pipeline) emit(envelopeType string, payload map[string]interface{}) {
	if p.deps.Broadcast == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	p.deps.Broadcast.Broadcast(broadcast.Envelope{
		Type:      envelopeType,
		ProjectID: p.projectID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// run is the dispatch loop: pick_task → ... → dispatch, until the plan
// is done, the project errors out, or stop is requested.
func (p *Pipeline) run() {
	defer p.setNotRunning()

	ctx := context.Background()

	for {
		if p.stopRequested() {
			p.setProjectStatus("paused")
			return
		}

		proj, ok := p.deps.Store.GetProject(p.projectID)
		if !ok {
			p.log.Error("project disappeared from store")
			return
		}
		if proj.Iteration >= p.params.MaxIterations {
			p.setProjectStatus("paused")
			p.emit("status", map[string]interface{}{"status": "paused", "message": "max iterations reached"})
			return
		}

		prj := p.readDiskPlan(toPlan(proj.Plan))
		stage := plan.ActiveStage(&prj)
		if stage == nil {
			p.setProjectStatus("completed")
			p.emit("status", map[string]interface{}{"status": "completed"})
			return
		}

		story := plan.ActiveStory(stage)
		if story == nil {
			plan.MarkStageCompleteIfDone(stage)
			if err := p.persistPlan(prj); err != nil {
				p.log.Error("persisting plan after stage completion", "error", err)
				p.setProjectStatus("error")
				return
			}
			continue // dispatch again without consuming an iteration slot
		}

		if len(story.Description) > maxSplitSize && !story.IsSubtasked {
			if p.splitStory(ctx, stage, story, &prj) {
				continue // re-dispatch without consuming an iteration slot
			}
			// fall through: execute the original story
		}

		outcome := p.runStory(ctx, &prj, stage, story)
		switch outcome {
		case outcomeStopped:
			p.setProjectStatus("paused")
			return
		case outcomeRolledBack:
			p.setProjectStatus("error")
			return
		case outcomeFatal:
			p.setProjectStatus("error")
			return
		default:
			// success or skip or in-progress retry: advance to the next
			// dispatch cycle. runStory has already slept: the
			// inter-iteration pause after success or skip, the backoff
			// wait alone after a retry.
		}
	}
}

func (p *Pipeline) setProjectStatus(status string) {
	proj, ok := p.deps.Store.GetProject(p.projectID)
	if !ok {
		return
	}
	proj.Status = status
	if err := p.deps.Store.SaveProject(proj); err != nil {
		p.log.Error("saving project status", "status", status, "error", err)
	}
}

func (p *Pipeline) persistPlan(pl plan.Plan) error {
	if err := p.deps.Store.UpdatePlan(p.projectID, toStorePlan(pl)); err != nil {
		return err
	}
	return p.writePlanFile(pl)
}

func (p *Pipeline) backoff(retryCount int) time.Duration {
	factor := math.Pow(p.params.BackoffMultiplier, float64(retryCount-1))
	return time.Duration(float64(p.params.BaseSleepTime) * factor)
}

func (p *Pipeline) sleepOrStop(d time.Duration) bool {
	select {
	case <-p.stopCh:
		return true
	case <-time.After(d):
		return false
	}
}
