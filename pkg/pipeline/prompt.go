package pipeline

import (
	"fmt"
	"strings"

	"github.com/ralph-build/orchestrator/pkg/plan"
)

// developerPrompt assembles the role=DEVELOPER prompt from the current
// story and the assembled iteration context.
func developerPrompt(stage *plan.Stage, story *plan.Story, ic iterationContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Mission\n%s\n\n", stage.Mission)
	fmt.Fprintf(&b, "## Task\nTitle: %s\nDescription: %s\nPriority: %s\nStrategy: %s\n\n",
		story.Title, story.Description, story.Priority, ic.strategy)

	if ic.manualChangeLog != "" {
		fmt.Fprintf(&b, "## Manual Changes\nUser modified: %s\n\n", ic.manualChangeLog)
	}

	if len(ic.lessons) > 0 {
		b.WriteString("## FAILURES TO AVOID\n")
		for _, l := range ic.lessons {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", l.Stage, l.Task, l.Error)
		}
		b.WriteString("\n")
	}

	if ic.agentsLog != "" {
		fmt.Fprintf(&b, "## Agent Log\n%s\n\n", ic.agentsLog)
	}
	if ic.progress != "" {
		fmt.Fprintf(&b, "## Current Progress\n%s\n\n", ic.progress)
	}

	if len(ic.excerpts) > 0 {
		b.WriteString("## Source Excerpts\n")
		for path, content := range ic.excerpts {
			fmt.Fprintf(&b, "### %s\n```\n%s\n```\n", path, content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Workspace Tree\n%s\n", ic.tree)

	return b.String()
}

// selfHealPrompt appends a SELF-HEALING block to the original developer
// prompt naming the offending file and syntax error. This extra
// invocation is not counted against the retry budget.
func selfHealPrompt(original, file, syntaxError string) string {
	return fmt.Sprintf("%s\n\n## SELF-HEALING\nThe file %s failed a syntax check with the following error. Fix it without otherwise changing the task:\n%s\n",
		original, file, syntaxError)
}

// reviewerPrompt assembles the role=REVIEWER prompt.
func reviewerPrompt(stage *plan.Stage, story *plan.Story, devResult, tree string) string {
	compactTree := truncateHead(tree, treeExcerptCap)
	return fmt.Sprintf("## Mission\n%s\n\n## Story\n%s\n\n## Developer Result\n%s\n\n## Workspace Tree\n%s\n",
		stage.Mission, story.Title, devResult, compactTree)
}
