package validators

import (
	"strings"
	"unicode"
)

// SanitizeString drops control characters, trims surrounding space and keeps at
// most maxRunes runes when maxRunes > 0.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, input))
	if maxRunes <= 0 {
		return cleaned
	}
	n := 0
	for i := range cleaned {
		if n == maxRunes {
			return strings.TrimSpace(cleaned[:i])
		}
		n++
	}
	return cleaned
}
