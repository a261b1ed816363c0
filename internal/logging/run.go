package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// KeyRunID is the attribute key injected by RunIDHandler.
const KeyRunID = "run_id"

type runIDKey struct{}

// WithRunID returns a new context carrying the given pipeline run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID extracts the run ID from ctx, returning ("", false) if not present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// RunIDHandler wraps an slog.Handler and adds a run_id attribute to every
// record whose context carries one.
type RunIDHandler struct {
	inner slog.Handler
}

// NewRunIDHandler creates a run-ID-aware handler wrapping inner.
func NewRunIDHandler(inner slog.Handler) *RunIDHandler {
	return &RunIDHandler{inner: inner}
}

func (h *RunIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RunIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := RunID(ctx); ok {
		r.AddAttrs(slog.String(KeyRunID, id))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("run id handler: %w", err)
	}
	return nil
}

func (h *RunIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunIDHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *RunIDHandler) WithGroup(name string) slog.Handler {
	return &RunIDHandler{inner: h.inner.WithGroup(name)}
}

// New builds the process logger. JSON output is meant for deployed
// instances, text output for local runs.
func New(w io.Writer, debug, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if jsonFormat {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewRunIDHandler(inner))
}
