package common

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const truncatedMarker = "...(truncated)"

var blockedPatterns = regexp.MustCompile(`(?i)<script|</script>|javascript:|data:|vbscript:|onload=|onerror=|onclick=`)

// SanitizeLabel prepares a short user-supplied label for storage:
// script-injection markers are replaced with [BLOCKED], surrounding
// whitespace is removed and a result longer than maxLen characters is cut
// and marked. The returned label never exceeds maxLen characters.
func SanitizeLabel(text string, maxLen int) string {
	if text == "" || maxLen <= 0 {
		return ""
	}

	text = strings.TrimSpace(blockedPatterns.ReplaceAllString(text, "[BLOCKED]"))

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	keep := maxLen - utf8.RuneCountInString(truncatedMarker)
	if keep <= 0 {
		return string(runes[:maxLen])
	}
	return strings.TrimRightFunc(string(runes[:keep]), unicode.IsSpace) + truncatedMarker
}

// HasBlockedPattern reports whether text contains a marker SanitizeLabel
// would replace.
func HasBlockedPattern(text string) bool {
	return blockedPatterns.MatchString(text)
}
