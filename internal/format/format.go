// Package format turns the generator's markdown-flavoured output into plain
// text that renders on LinkedIn.
//
// LinkedIn posts do not support markdown, so emphasis is mapped onto the
// Mathematical Sans-Serif Unicode blocks instead.
package format

import (
	"regexp"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	bulletPattern = regexp.MustCompile(`(?m)^\* `)
)

// ToLinkedIn converts generated post text into LinkedIn-ready text.
//
// Reasoning blocks are dropped, **bold** and *italic* spans are rewritten with
// sans-serif Unicode letters, "* " bullets become "• " and escaped "\n"
// sequences become real line breaks.
func ToLinkedIn(text string) string {
	text = StripThinking(text)
	text = boldPattern.ReplaceAllStringFunc(text, func(m string) string {
		return Bold(m[2 : len(m)-2])
	})
	text = bulletPattern.ReplaceAllString(text, "• ")
	text = replaceItalics(text)
	text = strings.ReplaceAll(text, `\n`, "\n")
	return strings.TrimSpace(text)
}

// StripThinking keeps only the text after the last closing think tag when the
// model emitted a reasoning block.
func StripThinking(text string) string {
	if !strings.Contains(text, thinkOpen) {
		return text
	}
	if i := strings.LastIndex(text, thinkClose); i >= 0 {
		return text[i+len(thinkClose):]
	}
	return text
}

// replaceItalics rewrites *x* spans where neither asterisk touches another
// asterisk and the span stays on one line.
func replaceItalics(text string) string {
	if !strings.Contains(text, "*") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		if text[i] != '*' || (i > 0 && text[i-1] == '*') {
			b.WriteByte(text[i])
			i++
			continue
		}

		end := closingStar(text, i)
		if end < 0 {
			b.WriteByte(text[i])
			i++
			continue
		}

		b.WriteString(Italic(text[i+1 : end]))
		i = end + 1
	}
	return b.String()
}

// closingStar returns the index of the asterisk closing an italic span opened
// at start, or -1.
func closingStar(text string, start int) int {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return -1
		case '*':
			if j == start+1 {
				return -1
			}
			if j+1 < len(text) && text[j+1] == '*' {
				return -1
			}
			return j
		}
	}
	return -1
}
