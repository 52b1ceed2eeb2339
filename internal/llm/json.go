package llm

import (
	"regexp"
	"strings"
)

var fenceMarkers = regexp.MustCompile("```json\\s?|```")

// ExtractJSONObject strips markdown code fences and returns the text between
// the first '{' and the last '}'. It reports false when no such span exists.
func ExtractJSONObject(text string) (string, bool) {
	cleaned := strings.TrimSpace(fenceMarkers.ReplaceAllString(text, ""))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return "", false
	}
	return cleaned[start : end+1], true
}
