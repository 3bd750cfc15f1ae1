package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"finanlito/internal/amqp"
	applog "finanlito/internal/log"
	"finanlito/internal/ports"
)

// headerWriter is implemented by journals that keep a title row per year.
type headerWriter interface {
	EnsureHeader(ctx context.Context, year int) error
}

// JournalWorker mirrors transaction change events into an append-only journal
type JournalWorker struct {
	journal ports.JournalWriter
	log     *applog.Logger

	mu      sync.Mutex
	headers map[int]bool
}

func NewJournalWorker(journal ports.JournalWriter, logger *applog.Logger) *JournalWorker {
	if logger == nil {
		logger = applog.FromSlog(nil, applog.ComponentWorker)
	} else {
		logger = logger.WithComponent(applog.ComponentWorker)
	}
	return &JournalWorker{
		journal: journal,
		log:     logger,
		headers: map[int]bool{},
	}
}

// HandleEvent appends one journal row for msg. An error asks the consumer to
// requeue the message.
func (w *JournalWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	entry := EntryFromEvent(msg)

	w.log.DebugContext(ctx, "Processing transaction event",
		applog.FieldEvent, entry.Event,
		applog.FieldTxID, entry.TransactionID)

	if hw, ok := w.journal.(headerWriter); ok {
		year := entryYear(entry)
		if err := w.ensureHeader(ctx, hw, year); err != nil {
			return fmt.Errorf("prepare journal for %d: %w", year, err)
		}
	}

	ref, err := w.journal.AppendEntry(ctx, entry)
	if err != nil {
		w.log.LogError(ctx, "Failed to append journal entry", err, applog.OpAppend,
			applog.NewFields().WithTransaction(entry.TransactionID, entry.Title, 0, entry.Status))
		return fmt.Errorf("append journal entry: %w", err)
	}

	w.log.InfoContext(ctx, "Journal entry appended",
		applog.FieldEvent, entry.Event,
		applog.FieldTxID, entry.TransactionID,
		applog.FieldSheetsRef, ref)
	return nil
}

func (w *JournalWorker) ensureHeader(ctx context.Context, hw headerWriter, year int) error {
	w.mu.Lock()
	done := w.headers[year]
	w.mu.Unlock()
	if done {
		return nil
	}
	if err := hw.EnsureHeader(ctx, year); err != nil {
		return err
	}
	w.mu.Lock()
	w.headers[year] = true
	w.mu.Unlock()
	return nil
}

func entryYear(e ports.JournalEntry) int {
	if len(e.Date) >= 4 {
		if y, err := strconv.Atoi(e.Date[:4]); err == nil {
			return y
		}
	}
	if !e.At.IsZero() {
		return e.At.Year()
	}
	return time.Now().Year()
}

// EntryFromEvent flattens a change event into a journal entry.
func EntryFromEvent(msg *amqp.TransactionEvent) ports.JournalEntry {
	return ports.JournalEntry{
		At:            msg.Timestamp,
		Event:         msg.Event,
		TransactionID: msg.TransactionID,
		Title:         msg.Title,
		Amount:        msg.Amount,
		Type:          msg.Type,
		Status:        msg.Status,
		Date:          msg.Date,
		Category:      msg.Category,
		CreditCard:    msg.CreditCard,
		Changes:       msg.Changes,
		Count:         msg.Count,
	}
}
