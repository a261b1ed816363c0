package newsletter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TopNewsMarker is the heading text that introduces the featured story.
const TopNewsMarker = "Top News"

// DefaultImageIndex selects the second image of the mail. The first one is
// the newsletter logo.
const DefaultImageIndex = 1

// ErrTopNewsNotFound is returned when the mail has no Top News section or the
// section carries no article link. Retrying will not change the outcome.
var ErrTopNewsNotFound = errors.New("top news not found")

// TopNews is the featured story of a newsletter.
type TopNews struct {
	Title    string
	Link     string
	ImageURL string
}

// ExtractTopNews finds the featured story in newsletter HTML. imageIndex picks
// the n-th <img> of the whole document as the post image; ImageURL is empty
// when the document has fewer images.
func ExtractTopNews(html string, imageIndex int) (*TopNews, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse newsletter html: %w", err)
	}

	marker := doc.Find("strong").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == TopNewsMarker
	}).First()
	if marker.Length() == 0 {
		return nil, fmt.Errorf("%w: no %q heading", ErrTopNewsNotFound, TopNewsMarker)
	}

	row := marker.Closest("tr")
	if row.Length() == 0 {
		return nil, fmt.Errorf("%w: heading is not inside a table row", ErrTopNewsNotFound)
	}

	next := row.Next()
	if next.Length() == 0 {
		return nil, fmt.Errorf("%w: no row after the heading", ErrTopNewsNotFound)
	}

	link := next.Find("a").First()
	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return nil, fmt.Errorf("%w: no article link after the heading", ErrTopNewsNotFound)
	}

	news := &TopNews{
		Title: strings.Join(strings.Fields(link.Text()), " "),
		Link:  href,
	}

	if imageIndex >= 0 {
		if img := doc.Find("img").Eq(imageIndex); img.Length() > 0 {
			news.ImageURL = strings.TrimSpace(img.AttrOr("src", ""))
		}
	}

	return news, nil
}
