package llmclient

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// FileBlock is one `### FILE: path` + fenced-code match extracted from an
// LLM response.
type FileBlock struct {
	Path    string
	Content string
}

// fileBlockPattern matches `### FILE: <path>` followed by a fenced code
// block, regardless of role. Non-overlapping, greedy-inside, left to
// right.
var fileBlockPattern = regexp.MustCompile("(?s)### FILE: (.*?)\n+```[^\n]*\n(.*?)```")

// ExtractFileBlocks finds every file block in response, in order.
func ExtractFileBlocks(response string) []FileBlock {
	matches := fileBlockPattern.FindAllStringSubmatch(response, -1)
	blocks := make([]FileBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, FileBlock{Path: m[1], Content: m[2]})
	}
	return blocks
}

// RenderFileBlock formats a single file block using the canonical
// syntax, the inverse of ExtractFileBlocks for a single entry.
func RenderFileBlock(path, content string) string {
	return fmt.Sprintf("### FILE: %s\n```\n%s```\n", path, content)
}

// ErrNoJSONFound is returned by ExtractJSON when no JSON value could be
// recovered from the response at all.
type ErrNoJSONFound struct {
	Prefix string
}

func (e *ErrNoJSONFound) Error() string {
	return fmt.Sprintf("no JSON value found in response: %q", e.Prefix)
}

// ExtractJSON performs the three-stage JSON recovery used for PRD and
// subtask-split responses:
//  1. Try parsing the whole trimmed response.
//  2. Else find the first '{' or '[' (whichever comes first), then from
//     the last matching closer work backwards, attempting a parse at
//     each candidate end position until one parses.
//  3. Else fail with a parse error carrying the response prefix.
func ExtractJSON(response string, out interface{}) error {
	trimmed := trimSpace(response)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	start := -1
	var opener, closer byte
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '{' || trimmed[i] == '[' {
			start = i
			opener = trimmed[i]
			if opener == '{' {
				closer = '}'
			} else {
				closer = ']'
			}
			break
		}
	}
	if start == -1 {
		return &ErrNoJSONFound{Prefix: prefix(response, 200)}
	}

	for end := len(trimmed) - 1; end > start; end-- {
		if trimmed[end] != closer {
			continue
		}
		candidate := trimmed[start : end+1]
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	return &ErrNoJSONFound{Prefix: prefix(response, 200)}
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
