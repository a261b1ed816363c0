package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	id, ok := RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)

	_, ok = RunID(context.Background())
	assert.False(t, ok)

	_, ok = RunID(WithRunID(context.Background(), ""))
	assert.False(t, ok, "empty run id should be reported as absent")
}

func TestRunIDHandler_InjectsAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, true)

	logger.InfoContext(WithRunID(context.Background(), "abc123"), "stage done", Stage("publish"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc123", rec[KeyRunID])
	assert.Equal(t, "publish", rec[KeyStage])
}

func TestRunIDHandler_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, true)

	logger.Info("startup")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, present := rec[KeyRunID]
	assert.False(t, present)
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer

	New(&buf, false, false).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, true, false).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRunIDHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewRunIDHandler(slog.NewJSONHandler(&buf, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "server")}))
	logger.InfoContext(WithRunID(context.Background(), "r2"), "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "server", rec["component"])
	assert.Equal(t, "r2", rec[KeyRunID])

	_, isRunID := h.WithGroup("g").(*RunIDHandler)
	assert.True(t, isRunID)
}
