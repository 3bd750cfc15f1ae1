// Package memory is an in-process journal used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"finanlito/internal/ports"
)

// Ensure interface conformance
var _ ports.JournalWriter = (*Journal)(nil)

type Journal struct {
	mu      sync.Mutex
	entries []ports.JournalEntry
}

func New() *Journal {
	return &Journal{}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (j *Journal) AppendEntry(_ context.Context, e ports.JournalEntry) (string, error) {
	if e.Event == "" {
		return "", errors.New("journal entry without event")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	e.Changes = slices.Clone(e.Changes)
	j.entries = append(j.entries, e)
	return fmt.Sprintf("mem:%d", len(j.entries)), nil
}

// Entries returns a copy of the appended entries in order.
func (j *Journal) Entries() []ports.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
