package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/plan"
	"github.com/ralph-build/orchestrator/pkg/store"
)

const (
	planFilePath     = "plans/prd.json"
	agentsLogPath    = "agents.md"
	progressFilePath = "progress.txt"
	rawLogDir        = ".ralph/logs"
	agentsLogCap     = 3000
	treeExcerptCap   = 1000
)

// readDiskPlan reads plans/prd.json, the source of truth for an active
// run. If the file does not yet exist, fallback is returned unchanged
// so a freshly-started project can still dispatch.
func (p *Pipeline) readDiskPlan(fallback plan.Plan) plan.Plan {
	raw, err := p.deps.Workspace.ReadFile(planFilePath)
	if err != nil {
		return fallback
	}
	var sp store.Plan
	if err := json.Unmarshal([]byte(raw), &sp); err != nil {
		p.log.Warn("plan file unreadable; using in-memory plan", "error", err)
		return fallback
	}
	return toPlan(sp)
}

// writePlanFile persists pl to plans/prd.json, pretty-printed.
func (p *Pipeline) writePlanFile(pl plan.Plan) error {
	data, err := json.MarshalIndent(toStorePlan(pl), "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling plan: %w", err)
	}
	return p.deps.Workspace.WriteFile(planFilePath, data)
}

// appendAgentsLog appends entry followed by a blank line to agents.md,
// the append-only human-readable agent log.
func (p *Pipeline) appendAgentsLog(entry string) error {
	existing, _ := p.deps.Workspace.ReadFile(agentsLogPath)
	updated := existing + entry + "\n\n"
	return p.deps.Workspace.WriteFile(agentsLogPath, []byte(updated))
}

// readAgentsLog reads agents.md, truncating to the last agentsLogCap
// characters with a truncation marker prefix if longer.
func (p *Pipeline) readAgentsLog() string {
	content, err := p.deps.Workspace.ReadFile(agentsLogPath)
	if err != nil {
		return ""
	}
	return truncateHead(content, agentsLogCap)
}

// readProgress reads progress.txt, returning "" if absent.
func (p *Pipeline) readProgress() string {
	content, _ := p.deps.Workspace.ReadFile(progressFilePath)
	return content
}

// writeRawLog persists the raw prompt+response for one LLM call under
// .ralph/logs/<ts>_<role>.md with a monotonically-unique filename.
func (p *Pipeline) writeRawLog(role llmclient.Role, prompt, response string) error {
	name := fmt.Sprintf("%s/%s_%s.md", rawLogDir, rawLogTimestamp(), strings.ToLower(string(role)))
	content := fmt.Sprintf("# %s\n\n## Prompt\n\n%s\n\n## Response\n\n%s\n", role, prompt, response)
	return p.deps.Workspace.WriteFile(name, []byte(content))
}

var rawLogSeq atomic.Int64

// rawLogTimestamp produces a unique, sortable timestamp token even when
// multiple calls — from multiple concurrently-running projects — land
// within the same nanosecond-resolution tick, by appending a monotonic
// per-process sequence number.
func rawLogTimestamp() string {
	seq := rawLogSeq.Add(1)
	return time.Now().UTC().Format("20060102T150405.000000000") + "-" + strconv.FormatInt(seq, 10)
}

// truncateHead returns the last n characters of s, prefixed with a
// truncation marker if s is longer than n.
func truncateHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "... [Truncated] ...\n" + s[len(s)-n:]
}
