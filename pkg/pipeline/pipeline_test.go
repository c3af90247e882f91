package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/syntaxgate"
	"github.com/ralph-build/orchestrator/pkg/vcsgate"
	"github.com/ralph-build/orchestrator/pkg/workspace"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

// fakeLLM serves a fixed queue of chat-completion responses, in order,
// repeating the last entry once exhausted.
type fakeLLM struct {
	mu    sync.Mutex
	queue []string
	calls int
}

func newFakeLLM(t *testing.T, responses ...string) (*httptest.Server, *fakeLLM) {
	f := &fakeLLM{queue: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		idx := f.calls
		if idx >= len(f.queue) {
			idx = len(f.queue) - 1
		}
		content := f.queue[idx]
		f.calls++
		f.mu.Unlock()

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, f
}

type fakeBroadcast struct {
	mu   sync.Mutex
	envs []broadcast.Envelope
}

func (f *fakeBroadcast) Broadcast(env broadcast.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = append(f.envs, env)
}

func (f *fakeBroadcast) has(envelopeType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.envs {
		if e.Type == envelopeType {
			return true
		}
	}
	return false
}

type harness struct {
	pipeline *Pipeline
	store    *store.Store
	ws       *workspace.Workspace
	bc       *fakeBroadcast
	root     string
}

func newHarness(t *testing.T, projectID string, initialPlan store.Plan, params Params, responses ...string) *harness {
	t.Helper()
	requireGit(t)

	root := t.TempDir()
	cmds := [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	}
	for _, args := range cmds {
		cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	ws, err := workspace.New(root)
	require.NoError(t, err)

	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	require.NoError(t, st.SaveProject(store.Project{ID: projectID, RootPath: root, Plan: initialPlan, Status: "running"}))

	srv, _ := newFakeLLM(t, responses...)
	llm := llmclient.New(llmclient.Config{Provider: llmclient.ProviderOpenAI, Model: "test-model", Endpoint: srv.URL})

	bc := &fakeBroadcast{}

	deps := Dependencies{
		Store:      st,
		VCS:        vcsgate.New(root),
		Workspace:  ws,
		LLM:        llm,
		SyntaxGate: syntaxgate.New(),
		Oracle:     approval.New(false),
		Broadcast:  bc,
	}

	p := New(projectID, params, deps)
	return &harness{pipeline: p, store: st, ws: ws, bc: bc, root: root}
}

func defaultParams() Params {
	return Params{
		MaxIterations:     50,
		MaxRetriesPerTask: 3,
		BaseSleepTime:     5 * time.Millisecond,
		BackoffMultiplier: 2,
		UseReviewerAgent:  false,
	}
}

func waitForStatus(t *testing.T, h *harness, projectID, status string) {
	t.Helper()
	require.Eventually(t, func() bool {
		proj, ok := h.store.GetProject(projectID)
		return ok && proj.Status == status
	}, 5*time.Second, 5*time.Millisecond, "expected project status %q", status)
}

func TestEmptyPlanCompletesImmediately(t *testing.T) {
	h := newHarness(t, "p1", store.Plan{Stages: nil}, defaultParams())
	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)

	waitForStatus(t, h, "p1", "completed")
	require.True(t, h.bc.has("status"))
}

func TestSingleStoryDeveloperSucceedsFirstTry(t *testing.T) {
	devResponse := "### FILE: progress.txt\n```\nPROMISE_MET\n```\n"
	initial := store.Plan{Stages: []store.Stage{{
		Name: "S", Mission: "m",
		Stories: []store.Story{{Title: "t", Description: "d", Priority: "standard"}},
	}}}

	h := newHarness(t, "p2", initial, defaultParams(), devResponse)
	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)

	waitForStatus(t, h, "p2", "completed")

	proj, ok := h.store.GetProject("p2")
	require.True(t, ok)
	require.True(t, proj.Plan.Stages[0].Stories[0].Passes)
	require.True(t, proj.Plan.Stages[0].IsCompleted)

	progress, err := h.ws.ReadFile("progress.txt")
	require.NoError(t, err)
	require.Contains(t, progress, "PROMISE_MET")
}

func TestReviewerRejectsTwicePassesThird(t *testing.T) {
	initial := store.Plan{Stages: []store.Stage{{
		Name: "S", Mission: "m",
		Stories: []store.Story{{Title: "t", Description: "d", Priority: "standard"}},
	}}}
	params := defaultParams()
	params.MaxRetriesPerTask = 5
	params.UseReviewerAgent = true

	h := newHarness(t, "p3", initial, params,
		"### FILE: a.txt\n```\ncode\n```\n", "needs work: missing input validation",
		"### FILE: a.txt\n```\ncode\n```\n", "needs work: missing input validation",
		"### FILE: a.txt\n```\ncode\n```\nPROMISE_MET", "REVIEW_PASSED ok",
	)
	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)

	waitForStatus(t, h, "p3", "completed")

	lessons := h.store.GetLessons()
	require.Len(t, lessons, 2)

	proj, _ := h.store.GetProject("p3")
	require.True(t, proj.Plan.Stages[0].Stories[0].Passes)
}

func TestNonCriticalTaskSkippedAfterMaxRetries(t *testing.T) {
	initial := store.Plan{Stages: []store.Stage{{
		Name: "S", Mission: "m",
		Stories: []store.Story{{Title: "t", Description: "d", Priority: "standard"}},
	}}}
	params := defaultParams()
	params.MaxRetriesPerTask = 2
	params.UseReviewerAgent = true

	h := newHarness(t, "p4", initial, params,
		"devresult 1", "needs work, always failing feedback text",
		"devresult 2", "needs work, always failing feedback text",
	)
	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)

	waitForStatus(t, h, "p4", "completed")

	proj, _ := h.store.GetProject("p4")
	story := proj.Plan.Stages[0].Stories[0]
	require.True(t, story.IsSkipped)
	require.Contains(t, story.SkipReason, "needs work")
}

func TestCriticalTaskRollsBackAndErrors(t *testing.T) {
	initial := store.Plan{Stages: []store.Stage{{
		Name: "S", Mission: "m",
		Stories: []store.Story{{Title: "t", Description: "d", Priority: "critical"}},
	}}}
	params := defaultParams()
	params.MaxRetriesPerTask = 2
	params.UseReviewerAgent = true

	h := newHarness(t, "p5", initial, params,
		"devresult 1", "needs work, always failing feedback text",
		"devresult 2", "needs work, always failing feedback text",
	)
	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)

	waitForStatus(t, h, "p5", "error")

	proj, _ := h.store.GetProject("p5")
	require.False(t, proj.Plan.Stages[0].Stories[0].Passes)
	require.True(t, h.bc.has("error"))
}

func TestBackoffIsMonotonic(t *testing.T) {
	p := &Pipeline{params: Params{BaseSleepTime: 10 * time.Millisecond, BackoffMultiplier: 2}}
	require.Equal(t, 10*time.Millisecond, p.backoff(1))
	require.Equal(t, 20*time.Millisecond, p.backoff(2))
	require.Equal(t, 40*time.Millisecond, p.backoff(3))
}
