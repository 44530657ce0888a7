package utils

import "unicode/utf8"

const ellipsis = "..."

// Truncate shortens s to at most maxLen runes, ending in "..." when cut.
// Stage messages carry file paths, so it never splits a multi-byte rune.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	keep := maxLen - len(ellipsis)
	suffix := ellipsis
	if keep <= 0 {
		keep, suffix = maxLen, ""
	}

	n := 0
	for i := range s {
		if n == keep {
			return s[:i] + suffix
		}
		n++
	}
	return s
}
