package domain

import (
	"strings"
	"unicode/utf8"
)

// CleanText trims s and checks its length in runes against [minLen, maxLen].
// A zero minLen makes the field optional.
func CleanText(field, s string, minLen, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)

	switch {
	case n == 0 && minLen > 0:
		return "", Invalid(field, "is required")
	case n < minLen:
		return "", Invalid(field, "must be at least %d characters", minLen)
	case maxLen > 0 && n > maxLen:
		return "", Invalid(field, "must be at most %d characters", maxLen)
	}

	return s, nil
}
