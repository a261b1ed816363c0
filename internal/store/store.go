// Package store keeps the ledger of newsletter messages the pipeline has
// already handled, so redelivered push notifications do not publish twice.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Processing outcomes stored per message.
const (
	StatusPublished = "published"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// ErrNotFound is returned by Get for unknown message IDs.
var ErrNotFound = errors.New("record not found")

// Record is the outcome of processing one Gmail message.
type Record struct {
	MessageID   string
	Status      string
	PostID      string
	ArticleURL  string
	Error       string
	ProcessedAt time.Time
}

// Done reports whether the message needs no further processing.
// Failed messages are retried on the next notification.
func (r *Record) Done() bool {
	return r != nil && (r.Status == StatusPublished || r.Status == StatusSkipped)
}

// Store persists processing records.
type Store interface {
	// Get returns the record for a message or ErrNotFound.
	Get(ctx context.Context, messageID string) (*Record, error)
	// Put inserts or replaces the record for rec.MessageID.
	Put(ctx context.Context, rec Record) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Normalize trims and validates rec, defaulting ProcessedAt to now.
func Normalize(rec Record) (Record, error) {
	rec.MessageID = strings.TrimSpace(rec.MessageID)
	rec.Status = strings.TrimSpace(rec.Status)
	rec.PostID = strings.TrimSpace(rec.PostID)
	rec.Error = strings.TrimSpace(rec.Error)

	if rec.MessageID == "" {
		return rec, errors.New("message id is required")
	}
	switch rec.Status {
	case StatusPublished, StatusSkipped, StatusFailed:
	default:
		return rec, fmt.Errorf("invalid status %q", rec.Status)
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now()
	}
	rec.ProcessedAt = rec.ProcessedAt.UTC()
	return rec, nil
}
