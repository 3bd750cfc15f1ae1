package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanlito/internal/amqp"
	"finanlito/internal/ports"
	"finanlito/internal/sheets/memory"
)

type headerJournal struct {
	*memory.Journal
	headers   []int
	headerErr error
}

func (h *headerJournal) EnsureHeader(_ context.Context, year int) error {
	if h.headerErr != nil {
		return h.headerErr
	}
	h.headers = append(h.headers, year)
	return nil
}

type failingJournal struct{}

func (failingJournal) AppendEntry(context.Context, ports.JournalEntry) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleEventAppendsEntry(t *testing.T) {
	j := memory.New()
	w := NewJournalWorker(j, nil)

	ts := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{
		Event:         amqp.EventUpdated,
		TransactionID: "tx-1",
		Status:        "paid",
		Changes:       []string{"status"},
		Timestamp:     ts,
	})
	require.NoError(t, err)

	entries := j.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, amqp.EventUpdated, e.Event)
	assert.Equal(t, "tx-1", e.TransactionID)
	assert.Equal(t, "paid", e.Status)
	assert.True(t, e.At.Equal(ts))
	assert.Equal(t, []string{"status"}, e.Changes)
}

func TestHandleEventReturnsAppendError(t *testing.T) {
	w := NewJournalWorker(failingJournal{}, nil)
	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{Event: amqp.EventDeleted, TransactionID: "x"})
	assert.Error(t, err, "the message must be requeued")
}

func TestHandleEventWritesHeaderOncePerYear(t *testing.T) {
	j := &headerJournal{Journal: memory.New()}
	w := NewJournalWorker(j, nil)
	ctx := context.Background()

	for _, date := range []string{"2025-01-10", "2025-06-01", "2026-01-01"} {
		require.NoError(t, w.HandleEvent(ctx, &amqp.TransactionEvent{Event: amqp.EventCreated, Date: date}), date)
	}

	assert.Equal(t, []int{2025, 2026}, j.headers)
	assert.Equal(t, 3, j.Len())
}

func TestHandleEventHeaderFailureSkipsAppend(t *testing.T) {
	j := &headerJournal{Journal: memory.New(), headerErr: errors.New("sheet missing")}
	w := NewJournalWorker(j, nil)

	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{Event: amqp.EventCreated, Date: "2025-01-10"})
	require.Error(t, err)
	assert.Zero(t, j.Len(), "no entries after header failure")
}

func TestEntryYear(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 2025, entryYear(ports.JournalEntry{Date: "2025-01-01", At: at}))
	assert.Equal(t, 2024, entryYear(ports.JournalEntry{At: at}))
}
