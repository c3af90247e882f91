package api

import (
	"log/slog"
	"time"

	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/installer"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/pipeline"
	"github.com/ralph-build/orchestrator/pkg/registry"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/syntaxgate"
	"github.com/ralph-build/orchestrator/pkg/vcsgate"
	"github.com/ralph-build/orchestrator/pkg/workspace"
)

// PipelineFactoryDeps bundles the collaborators shared across every
// project's Pipeline — only the project-scoped pieces (VCS gate,
// workspace) are constructed fresh per project. Oracle is shared: it
// holds at most one outstanding approval rendezvous for the whole
// process (one pre-authorised chat operator can only ever be looking
// at one pending approval at a time), so every Pipeline and the chat
// bridge must reference the same instance.
type PipelineFactoryDeps struct {
	Store      *store.Store
	LLM        *llmclient.Client
	SyntaxGate *syntaxgate.Checker
	Broadcast  *broadcast.Manager
	Installer  *installer.Npm
	Oracle     *approval.Oracle
}

// NewPipelineFactory returns a registry.Factory that builds a
// pipeline.Pipeline for a project id, deriving Params from the current
// global Settings and the project's own persisted state. Each project
// gets its own VCS gate and workspace; the remaining collaborators are
// shared across every project.
func NewPipelineFactory(deps PipelineFactoryDeps) registry.Factory {
	return func(projectID string) registry.Pipeline {
		proj, ok := deps.Store.GetProject(projectID)
		if !ok {
			slog.Default().Error("pipeline factory: project not found", "project_id", projectID)
		}

		settings := deps.Store.GetSettings()

		ws, err := workspace.New(proj.RootPath)
		if err != nil {
			slog.Default().Error("pipeline factory: invalid workspace root", "project_id", projectID, "error", err)
		}

		params := pipeline.Params{
			MaxIterations:     settings.MaxIterations,
			MaxRetriesPerTask: settings.MaxRetriesPerTask,
			BaseSleepTime:     time.Duration(settings.BaseSleepTime) * time.Millisecond,
			BackoffMultiplier: settings.BackoffMultiplier,
			UseReviewerAgent:  settings.UseReviewerAgent,
			UseHumanReview:    proj.UseHumanReview,
			ChatEnabled:       settings.Chat.Enabled,
		}

		return pipeline.New(projectID, params, pipeline.Dependencies{
			Store:      deps.Store,
			VCS:        vcsgate.New(proj.RootPath),
			Workspace:  ws,
			LLM:        deps.LLM,
			SyntaxGate: deps.SyntaxGate,
			Oracle:     deps.Oracle,
			Broadcast:  deps.Broadcast,
			Installer:  deps.Installer,
		})
	}
}

// ResumeOnStart scans the Store for projects left in "running" status
// (e.g. after a process restart) and starts their pipelines, recovering
// any in-flight work orphaned by the previous process's exit.
func ResumeOnStart(st *store.Store, reg *registry.Registry) {
	for _, p := range st.GetProjects() {
		if p.Status == "running" {
			slog.Default().Info("resuming pipeline", "project_id", p.ID)
			reg.Start(p.ID)
		}
	}
}
