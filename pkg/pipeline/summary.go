package pipeline

import "strings"

const (
	summaryFallbackCap  = 500
	summaryMinLen       = 10
	summaryMaxLines     = 5
)

var summaryMarkers = []string{"summary:", "findings:", "criteria:"}

// extractSummary finds the first line whose lowercase form contains one
// of the marker tokens,
// then capture from that line forward until a fenced code block begins.
// If no marker is present, capture the first up to 5 non-empty lines. If
// the result is too short to be useful, fall back to the first 500
// characters with an ellipsis tag.
func extractSummary(response string) string {
	lines := strings.Split(response, "\n")

	markerIdx := -1
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, m := range summaryMarkers {
			if strings.Contains(lower, m) {
				markerIdx = i
				break
			}
		}
		if markerIdx != -1 {
			break
		}
	}

	var captured string
	if markerIdx != -1 {
		var out []string
		for _, line := range lines[markerIdx:] {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				break
			}
			out = append(out, line)
		}
		captured = strings.TrimSpace(strings.Join(out, "\n"))
	} else {
		var out []string
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			out = append(out, line)
			if len(out) == summaryMaxLines {
				break
			}
		}
		captured = strings.TrimSpace(strings.Join(out, "\n"))
	}

	if len(captured) <= summaryMinLen {
		if len(response) <= summaryFallbackCap {
			return response + "\n... [Truncated] ..."
		}
		return response[:summaryFallbackCap] + "\n... [Truncated] ..."
	}
	return captured
}
