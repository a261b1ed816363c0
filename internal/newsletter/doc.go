// Package newsletter extracts the featured article from newsletter HTML and
// reduces web pages to their visible text.
//
// The newsletters this service consumes are table-based HTML mails. The
// featured story sits in the table row that follows the row holding the
// "Top News" heading; its first link points at the article.
package newsletter
