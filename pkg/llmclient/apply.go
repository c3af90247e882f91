package llmclient

import (
	"log/slog"

	"github.com/ralph-build/orchestrator/pkg/workspace"
)

// ApplyFileBlocks writes every extracted file block to ws, refusing and
// logging (not aborting) any block whose path escapes the workspace
// root: skip the offending file, log, continue applying the rest.
// Returns the paths that were actually written.
func ApplyFileBlocks(ws *workspace.Workspace, blocks []FileBlock) []string {
	log := slog.Default().With("component", "llmclient")
	applied := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if err := ws.WriteFile(b.Path, []byte(b.Content)); err != nil {
			log.Warn("skipping file block with invalid path", "path", b.Path, "error", err)
			continue
		}
		applied = append(applied, b.Path)
	}
	return applied
}
