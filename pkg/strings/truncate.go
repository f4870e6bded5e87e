// Package strings holds small text helpers shared by output code.
package strings

import (
	"strings"
)

// MinTruncateLen is the smallest maxLen SingleLine honours; it leaves room
// for one character plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs in s (including newlines) into
// single spaces and truncates the result to maxLen runes, ending it with
// "..." when shortened. A maxLen of zero or less disables truncation.
func SingleLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		return s
	}
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
