package utils

import "strings"

// Truncate flattens s to a single line and cuts it to at most maxLen runes,
// ending with "…" when anything was dropped.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
