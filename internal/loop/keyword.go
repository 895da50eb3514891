// Package loop implements the iteration controller: it drives a Worker
// through bounded iterations, classifies each report into an outcome,
// evaluates exit conditions in priority order, and escalates recovery
// when iterations fail.
package loop

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsKeyword reports whether text contains keyword as a whole word,
// case-insensitively. A match must be bounded on both sides by the start
// or end of the text or by a non-alphanumeric rune, so a keyword of
// "DONE" matches "done", "DONE!" and "[done]" but not "ABANDONED".
func ContainsKeyword(text, keyword string) bool {
	if keyword == "" || len(text) < len(keyword) {
		return false
	}

	haystack := strings.ToLower(text)
	needle := strings.ToLower(keyword)

	for start := 0; start+len(needle) <= len(haystack); {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		if boundaryBefore(haystack, idx) && boundaryAfter(haystack, idx+len(needle)) {
			return true
		}
		start = idx + 1
	}
	return false
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
