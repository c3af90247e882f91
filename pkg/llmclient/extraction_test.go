package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFileBlocksSingle(t *testing.T) {
	response := "Some prose.\n\n### FILE: progress.txt\n```\nPROMISE_MET\n```\nmore text"
	blocks := ExtractFileBlocks(response)
	require.Len(t, blocks, 1)
	assert.Equal(t, "progress.txt", blocks[0].Path)
	assert.Equal(t, "PROMISE_MET\n", blocks[0].Content)
}

func TestExtractFileBlocksMultipleWithLangTag(t *testing.T) {
	response := "### FILE: src/a.js\n```javascript\nconsole.log(1)\n```\n\n### FILE: src/b.css\n```css\nbody{}\n```\n"
	blocks := ExtractFileBlocks(response)
	require.Len(t, blocks, 2)
	assert.Equal(t, "src/a.js", blocks[0].Path)
	assert.Equal(t, "console.log(1)\n", blocks[0].Content)
	assert.Equal(t, "src/b.css", blocks[1].Path)
	assert.Equal(t, "body{}\n", blocks[1].Content)
}

func TestFileBlockRoundTrip(t *testing.T) {
	rendered := RenderFileBlock("a.txt", "hello\n")
	blocks := ExtractFileBlocks(rendered)
	require.Len(t, blocks, 1)
	assert.Equal(t, "a.txt", blocks[0].Path)
	assert.Equal(t, "hello\n", blocks[0].Content)
}

func TestExtractJSONWholeResponse(t *testing.T) {
	var out map[string]int
	err := ExtractJSON(`{"a": 1}`, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, out["a"])
}

func TestExtractJSONWithSurroundingProse(t *testing.T) {
	var out []string
	err := ExtractJSON("Here is the plan:\n[\"a\", \"b\"]\nHope that helps!", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestExtractJSONFailsWithPrefix(t *testing.T) {
	var out map[string]int
	err := ExtractJSON("not json at all", &out)
	require.Error(t, err)
	var noJSON *ErrNoJSONFound
	require.ErrorAs(t, err, &noJSON)
	assert.Equal(t, "not json at all", noJSON.Prefix)
}

func TestEnrichPromptAppendsRoleSuffix(t *testing.T) {
	out := EnrichPrompt(RoleDeveloper, "do the thing")
	assert.Contains(t, out, "do the thing")
	assert.Contains(t, out, "PROMISE_MET")

	out = EnrichPrompt(RoleReviewer, "review the thing")
	assert.Contains(t, out, "REVIEW_PASSED")
}
