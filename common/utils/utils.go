package utils

import "strings"

// Abbreviate returns the first line of s, cut to at most n runes, for use in log lines.
func Abbreviate(s string, n int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + " ..."
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "..."
}
