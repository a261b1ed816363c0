package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "msg-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, Record{MessageID: " msg-1 ", Status: StatusFailed, Error: "boom"}))
	rec, err := m.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.False(t, rec.Done())
	assert.False(t, rec.ProcessedAt.IsZero())

	require.NoError(t, m.Put(ctx, Record{MessageID: "msg-1", Status: StatusPublished, PostID: "urn:li:share:1"}))
	rec, err = m.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:1", rec.PostID)
	assert.True(t, rec.Done())
}

func TestMemory_GetTrimsMessageID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, Record{MessageID: "msg-1", Status: StatusPublished, PostID: "urn:li:share:1"}))

	rec, err := m.Get(ctx, "  msg-1\n")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", rec.MessageID)
	assert.True(t, rec.Done())
}

func TestMemory_PutValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.Error(t, m.Put(ctx, Record{Status: StatusPublished}))
	assert.Error(t, m.Put(ctx, Record{MessageID: "x", Status: "weird"}))
}

func TestMemory_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, Record{
			MessageID:   id,
			Status:      StatusSkipped,
			ProcessedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := m.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].MessageID)
	assert.Equal(t, "b", recs[1].MessageID)

	_, err = m.List(ctx, 0)
	assert.Error(t, err)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecord_Done(t *testing.T) {
	var nilRec *Record
	assert.False(t, nilRec.Done())
	assert.True(t, (&Record{Status: StatusSkipped}).Done())
	assert.True(t, (&Record{Status: StatusPublished}).Done())
	assert.False(t, (&Record{Status: StatusFailed}).Done())
}
