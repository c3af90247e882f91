package pipeline

import (
	"context"
	"strings"

	"github.com/ralph-build/orchestrator/pkg/store"
)

const (
	maxExcerptFiles = 15
	maxExcerptChars = 5000
	maxLessonsUsed  = 3
)

var excerptExtensions = []string{".ts", ".js", ".css", ".html"}

// iterationContext is everything prepareContext assembles for one
// dispatch of runDeveloper/runReviewer.
type iterationContext struct {
	manualChangeLog string // comma-joined manually-changed paths, or ""
	agentsLog       string // agents.md, truncated
	progress        string
	tree            string
	excerpts        map[string]string // relative path -> content (<=5000 chars)
	lessons         []store.Lesson    // last 3
	strategy        Strategy
}

// prepareContext assembles the context for the next developer/reviewer
// dispatch in full, including the manual-change reconciliation side
// effect (commit + install trigger).
func (p *Pipeline) prepareContext(ctx context.Context, retryCount int) (iterationContext, error) {
	var ic iterationContext

	uncommitted, err := p.deps.VCS.HasUncommittedChanges(ctx)
	if err != nil {
		return ic, err
	}
	if uncommitted {
		changed, err := p.deps.VCS.CommitManualChanges(ctx)
		if err != nil {
			return ic, err
		}
		ic.manualChangeLog = strings.Join(changed, ", ")
		if containsManifest(changed) && p.deps.Installer != nil {
			go p.deps.Installer.Install(p.deps.Workspace.Root())
		}
	}

	ic.agentsLog = p.readAgentsLog()
	ic.progress = p.readProgress()

	tree, err := p.deps.Workspace.Tree()
	if err != nil {
		p.log.Warn("rendering workspace tree failed", "error", err)
	}
	ic.tree = tree

	ic.excerpts = p.collectExcerpts()

	lessons := p.deps.Store.GetLessons()
	if len(lessons) > maxLessonsUsed {
		lessons = lessons[len(lessons)-maxLessonsUsed:]
	}
	ic.lessons = lessons

	if retryCount > 2 {
		ic.strategy = StrategyRewrite
	} else {
		ic.strategy = StrategyPatch
	}

	return ic, nil
}

func containsManifest(paths []string) bool {
	for _, p := range paths {
		if p == "package.json" {
			return true
		}
	}
	return false
}

// collectExcerpts gathers up to maxExcerptFiles candidate source files
// (under src/ or the project root, matching excerptExtensions, excluding
// test files), each inlined up to maxExcerptChars.
func (p *Pipeline) collectExcerpts() map[string]string {
	files, err := p.deps.Workspace.ListFiles()
	if err != nil {
		p.log.Warn("listing workspace files for context failed", "error", err)
		return nil
	}

	excerpts := make(map[string]string)
	for _, rel := range files {
		if len(excerpts) >= maxExcerptFiles {
			break
		}
		if !isCandidateExcerpt(rel) {
			continue
		}
		content, err := p.deps.Workspace.ReadFile(rel)
		if err != nil {
			continue
		}
		if len(content) > maxExcerptChars {
			content = content[:maxExcerptChars]
		}
		excerpts[rel] = content
	}
	return excerpts
}

func isCandidateExcerpt(rel string) bool {
	if strings.Contains(rel, ".test.") {
		return false
	}
	if !strings.HasPrefix(rel, "src/") && strings.Contains(rel, "/") {
		return false
	}
	for _, ext := range excerptExtensions {
		if strings.HasSuffix(rel, ext) {
			return true
		}
	}
	return false
}
