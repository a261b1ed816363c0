package newsletter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// invisible elements whose content never reaches the reader
const invisible = "script, style, noscript, template"

// PageText returns the visible text of an HTML document: every text node
// trimmed, empty ones dropped, joined by newlines.
func PageText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find(invisible).Remove()

	var lines []string
	collectText(doc.Selection, &lines)
	return strings.Join(lines, "\n"), nil
}

func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			if t := strings.TrimSpace(c.Text()); t != "" {
				*lines = append(*lines, t)
			}
		case "#comment":
		default:
			collectText(c, lines)
		}
	})
}

// Truncate cuts text to at most limit runes. A limit of zero or less keeps
// the text unchanged.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
