package llmclient

import (
	"testing"

	"github.com/ralph-build/orchestrator/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFileBlocksSkipsPathEscape(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	blocks := []FileBlock{
		{Path: "src/a.js", Content: "ok"},
		{Path: "../../etc/passwd", Content: "bad"},
	}
	applied := ApplyFileBlocks(ws, blocks)
	assert.Equal(t, []string{"src/a.js"}, applied)

	content, err := ws.ReadFile("src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
}
