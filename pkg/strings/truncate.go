package strings

import (
	"strings"
)

// DefaultLogValueMaxLen bounds provider-supplied text copied into logs and pages.
const DefaultLogValueMaxLen = 200

// MinTruncateLen is the smallest maxLen SingleLine honours.
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs in s to single spaces and cuts the
// result to maxLen runes, ending in "..." when cut. Provider error bodies and
// descriptions pass through here before they reach a log line or an HTML page.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
