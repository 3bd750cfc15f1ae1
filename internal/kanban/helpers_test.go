package kanban

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finanlito/internal/core"
	"finanlito/internal/memory"
	"finanlito/internal/ports"
)

const testToken = "tok-test"

var errBackend = errors.New("backend down")

type call struct {
	Op string
	ID string
}

// recordingService wraps the memory store, records every call and can fail
// selected operations.
type recordingService struct {
	*memory.Store

	mu    sync.Mutex
	calls []call

	// createOK is how many creates succeed before the rest fail; -1 means
	// unlimited.
	createOK  int
	failOps   map[string]error
	creations int
}

func newRecordingService(seed ...core.Transaction) *recordingService {
	s := memory.New(core.DefaultCategories)
	s.Seed(testToken, seed...)
	return &recordingService{Store: s, createOK: -1, failOps: map[string]error{}}
}

func (r *recordingService) record(op, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Op: op, ID: id})
	return r.failOps[op]
}

func (r *recordingService) List(ctx context.Context, year, month int) ([]core.Transaction, error) {
	if err := r.record("list", ""); err != nil {
		return nil, err
	}
	return r.Store.List(ctx, year, month)
}

func (r *recordingService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := r.record("create", d.Title); err != nil {
		return core.Transaction{}, err
	}
	r.mu.Lock()
	if r.createOK >= 0 && r.creations >= r.createOK {
		r.mu.Unlock()
		return core.Transaction{}, errBackend
	}
	r.creations++
	r.mu.Unlock()
	return r.Store.Create(ctx, d)
}

func (r *recordingService) Update(ctx context.Context, id string, p core.Patch) error {
	if err := r.record("update", id); err != nil {
		return err
	}
	return r.Store.Update(ctx, id, p)
}

func (r *recordingService) Delete(ctx context.Context, id string) error {
	if err := r.record("delete", id); err != nil {
		return err
	}
	return r.Store.Delete(ctx, id)
}

func (r *recordingService) UpdateOrder(ctx context.Context, items []core.OrderItem) error {
	if err := r.record("order", ""); err != nil {
		return err
	}
	return r.Store.UpdateOrder(ctx, items)
}

func (r *recordingService) Calls(op string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingService) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recordingService) Stored(t *testing.T, year int) []core.Transaction {
	t.Helper()
	list, err := r.Store.List(ports.WithToken(context.Background(), testToken), year, 0)
	require.NoError(t, err)
	return list
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func expense(id, title string, cents int64, status core.Status, date time.Time, order int) core.Transaction {
	return core.Transaction{
		ID:       id,
		Title:    title,
		Amount:   core.Money{Cents: cents},
		Type:     core.Expense,
		Status:   status,
		Date:     date,
		Category: "Moradia",
		Order:    order,
	}
}

func income(id, title string, cents int64, date time.Time, order int) core.Transaction {
	return core.Transaction{
		ID:       id,
		Title:    title,
		Amount:   core.Money{Cents: cents},
		Type:     core.Income,
		Status:   core.Paid,
		Date:     date,
		Category: "Salário",
		Order:    order,
	}
}

// loadedBoard seeds a recording service and loads year 2025 at now.
func loadedBoard(t *testing.T, now time.Time, seed ...core.Transaction) (*Board, *recordingService) {
	t.Helper()
	svc := newRecordingService(seed...)
	opts := DefaultOptions()
	opts.Clock = fixedClock(now)
	b := NewBoard(svc, opts)
	_, err := b.Load(context.Background(), now.Year(), testToken)
	require.NoError(t, err)
	svc.Reset()
	return b, svc
}

func ids(list []core.Transaction) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func titles(list []core.Transaction) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Title
	}
	return out
}

func orders(list []core.Transaction) []int {
	out := make([]int, len(list))
	for i, t := range list {
		out[i] = t.Order
	}
	return out
}
