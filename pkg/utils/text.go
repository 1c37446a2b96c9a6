// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// AlphaTokens returns the lowercase alphabetic tokens of s with length at
// least minLen. Non-letter runes are treated as separators.
func AlphaTokens(s string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// AlphaRatio returns the fraction of runes in s that are letters.
// Returns 0 for an empty string.
func AlphaRatio(s string) float64 {
	if s == "" {
		return 0
	}
	var letters, total int
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters) / float64(total)
}
