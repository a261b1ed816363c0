package format

import "strings"

// First code points of the Mathematical Sans-Serif ranges.
const (
	boldUpper   = 0x1D5D4
	boldLower   = 0x1D5EE
	boldDigit   = 0x1D7EC
	italicUpper = 0x1D608
	italicLower = 0x1D622
)

// Bold maps ASCII letters and digits to Mathematical Sans-Serif Bold.
// Other runes are kept.
func Bold(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return boldUpper + (r - 'A')
		case r >= 'a' && r <= 'z':
			return boldLower + (r - 'a')
		case r >= '0' && r <= '9':
			return boldDigit + (r - '0')
		}
		return r
	}, s)
}

// Italic maps ASCII letters to Mathematical Sans-Serif Italic.
// Digits have no italic form and are kept like any other rune.
func Italic(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return italicUpper + (r - 'A')
		case r >= 'a' && r <= 'z':
			return italicLower + (r - 'a')
		}
		return r
	}, s)
}
