package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// PublishEvent captures one attempt to turn a newsletter message into a
// LinkedIn post, for the audit trail.
//
// # Privacy Considerations
//
// Text is the generated post. It is only written to the audit stream when
// PublishAuditConfig.IncludeText is set; otherwise only its length is logged.
type PublishEvent struct {
	RunID     string
	MessageID string

	// Article and image selected from the newsletter
	ArticleURL string
	ImageURL   string

	// Outcome
	PostID    string
	Text      string
	DryRun    bool
	StartTime time.Time
	Duration  time.Duration
	Status    string
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewPublishEvent creates a PublishEvent with timing started.
// Call one of the Complete methods when the run finishes.
func NewPublishEvent(runID, messageID string) *PublishEvent {
	return &PublishEvent{
		RunID:     runID,
		MessageID: messageID,
		StartTime: time.Now(),
	}
}

// WithSpanContext extracts trace context from the current span.
func (pe *PublishEvent) WithSpanContext(ctx context.Context) *PublishEvent {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		pe.TraceID = span.SpanContext().TraceID().String()
		pe.SpanID = span.SpanContext().SpanID().String()
	}
	return pe
}

// CompleteSuccess marks the event as published with the given post ID.
func (pe *PublishEvent) CompleteSuccess(postID string) *PublishEvent {
	pe.Duration = time.Since(pe.StartTime)
	pe.PostID = postID
	pe.Status = StatusSuccess
	return pe
}

// CompleteSkipped marks the event as skipped for the given reason.
func (pe *PublishEvent) CompleteSkipped(reason error) *PublishEvent {
	pe.Duration = time.Since(pe.StartTime)
	pe.Status = StatusSkipped
	if reason != nil {
		pe.Error = reason.Error()
	}
	return pe
}

// CompleteWithError marks the event as failed.
func (pe *PublishEvent) CompleteWithError(err error) *PublishEvent {
	pe.Duration = time.Since(pe.StartTime)
	pe.Status = StatusError
	if err != nil {
		pe.Error = err.Error()
	}
	return pe
}

// LogAttrs returns slog attributes for the audit record.
func (pe *PublishEvent) LogAttrs(includeText bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("run_id", pe.RunID),
		slog.String("message_id", pe.MessageID),
		slog.String("status", pe.Status),
		slog.Duration("duration", pe.Duration),
	}

	if pe.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if pe.ArticleURL != "" {
		attrs = append(attrs, slog.String("article_url", pe.ArticleURL))
	}
	if pe.ImageURL != "" {
		attrs = append(attrs, slog.String("image_url", pe.ImageURL))
	}
	if pe.PostID != "" {
		attrs = append(attrs, slog.String("post_id", pe.PostID))
	}
	if includeText && pe.Text != "" {
		attrs = append(attrs, slog.String("text", pe.Text))
	} else {
		attrs = append(attrs, slog.Int("text_length", len([]rune(pe.Text))))
	}
	if pe.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", pe.TraceID))
	}
	if pe.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", pe.SpanID))
	}
	if pe.Error != "" {
		attrs = append(attrs, slog.String("error", pe.Error))
	}

	return attrs
}

// AuditLogger writes one structured record per pipeline run.
type AuditLogger struct {
	logger      *slog.Logger
	includeText bool
	enabled     bool
}

// NewAuditLogger creates an AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config PublishAuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:      logger.With("component", "audit"),
		includeText: config.IncludeText,
		enabled:     config.Enabled,
	}
}

// LogPublish writes the audit record for a completed event.
// A nil receiver is a no-op.
func (al *AuditLogger) LogPublish(pe *PublishEvent) {
	if al == nil || !al.enabled || pe == nil {
		return
	}

	attrs := pe.LogAttrs(al.includeText)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	switch pe.Status {
	case StatusSuccess:
		al.logger.Info("post_published", args...)
	case StatusSkipped:
		al.logger.Info("post_skipped", args...)
	default:
		al.logger.Warn("post_failed", args...)
	}
}
