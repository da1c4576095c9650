package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes a recording name safe to use as an output file
// stem. Path separators, colons and asterisks become dashes; quotes, angle
// brackets, pipes, question marks and control characters are dropped.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(cleaned)
}
