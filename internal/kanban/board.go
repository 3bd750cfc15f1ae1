package kanban

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
	"finanlito/internal/ports"
)

// Options tunes a Board.
type Options struct {
	// Concurrency bounds the persistence calls issued in parallel by one
	// batch step (default: 4).
	Concurrency int

	// RollbackPartialBatches deletes the records a failed batch creation did
	// manage to create before the board reloads (default: false).
	RollbackPartialBatches bool

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	Logger *applog.Logger
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Concurrency: 4,
		Clock:       time.Now,
	}
}

// Board is the in-memory ordered transaction set of one year, kept in sync
// with a TransactionService.
type Board struct {
	svc  ports.TransactionService
	opts Options
	log  *applog.Logger

	mu    sync.Mutex
	ready bool
	year  int
	token string
	list  []core.Transaction // sorted by Order
	tags  map[string]core.Installment
}

func NewBoard(svc ports.TransactionService, opts Options) *Board {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromSlog(nil, applog.ComponentKanban)
	} else {
		logger = logger.WithComponent(applog.ComponentKanban)
	}
	return &Board{
		svc:  svc,
		opts: opts,
		log:  logger,
		tags: map[string]core.Installment{},
	}
}

// Load fetches the year from the service, assigns an order to legacy records
// by fetch position, sorts by order and runs the overdue migration once.
func (b *Board) Load(ctx context.Context, year int, token string) ([]core.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.year = year
	b.token = token
	if err := b.loadLocked(ctx); err != nil {
		b.ready = false
		b.log.LogError(ctx, "Failed to load board", err, applog.OpLoad, applog.NewFields().WithPeriod(year, 0))
		return nil, fmt.Errorf("load %d: %w: %w", year, ErrOperationFailed, err)
	}
	return b.snapshotLocked(), nil
}

// Reload resynchronizes the board with the service.
func (b *Board) Reload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return ErrNotLoaded
	}
	if err := b.loadLocked(ctx); err != nil {
		return fmt.Errorf("reload %d: %w: %w", b.year, ErrOperationFailed, err)
	}
	return nil
}

func (b *Board) loadLocked(ctx context.Context) error {
	list, err := b.svc.List(b.authed(ctx), b.year, 0)
	if err != nil {
		return err
	}
	b.setAllLocked(AssignMissingOrder(list))
	b.migrateLocked(ctx, b.opts.Clock())
	b.ready = true

	b.log.InfoContext(ctx, "Board loaded",
		applog.FieldYear, b.year,
		applog.FieldCount, len(b.list))
	return nil
}

// AssignMissingOrder gives every record without an explicit order its
// position in fetch order, then sorts the list by order. Ties keep fetch
// order.
func AssignMissingOrder(list []core.Transaction) []core.Transaction {
	out := slices.Clone(list)
	for i := range out {
		if out[i].Order < 0 {
			out[i].Order = i
		}
	}
	sortByOrder(out)
	return out
}

// SetAll replaces the sequence.
func (b *Board) SetAll(list []core.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setAllLocked(list)
}

func (b *Board) setAllLocked(list []core.Transaction) {
	b.list = slices.Clone(list)
	sortByOrder(b.list)
	b.rebuildTagsLocked()
}

// Persist sends a partial update for one record and applies it on success.
func (b *Board) Persist(ctx context.Context, id string, p core.Patch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return ErrNotLoaded
	}
	if b.indexOf(id) < 0 {
		return ErrNotFound
	}
	if err := b.svc.Update(b.authed(ctx), id, p); err != nil {
		return b.fail(ctx, applog.OpUpdate, err)
	}
	b.applyPatchLocked(id, p)
	b.dropForeignLocked()
	return nil
}

// Remove deletes one record without touching its installment siblings.
func (b *Board) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return ErrNotLoaded
	}
	if b.indexOf(id) < 0 {
		return ErrNotFound
	}
	if err := b.svc.Delete(b.authed(ctx), id); err != nil {
		return b.fail(ctx, applog.OpDelete, err)
	}
	b.removeLocked(map[string]bool{id: true})
	return nil
}

// PersistOrder applies the given order keys and sends them in one batch.
// A failed batch is logged only; memory stays authoritative until the next
// load.
func (b *Board) PersistOrder(ctx context.Context, items []core.OrderItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range items {
		if i := b.indexOf(it.ID); i >= 0 {
			b.list[i].Order = it.Order
		}
	}
	sortByOrder(b.list)
	b.persistOrderLocked(ctx, items)
}

func (b *Board) persistOrderLocked(ctx context.Context, items []core.OrderItem) {
	if len(items) == 0 {
		return
	}
	if err := b.svc.UpdateOrder(b.authed(ctx), items); err != nil {
		b.log.LogError(ctx, "Failed to persist order", err, applog.OpReorder, applog.NewFields().WithCount(len(items)))
	}
}

// Ready reports whether the board has been loaded.
func (b *Board) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Board) Year() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.year
}

// Snapshot returns a copy of the ordered sequence.
func (b *Board) Snapshot() []core.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Get returns one record by id.
func (b *Board) Get(id string) (core.Transaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return b.list[i], true
}

// Column returns the records of one status column in display order.
func (b *Board) Column(p core.Period, s core.Status) []core.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ColumnOf(b.list, p, s)
}

// Columns returns every status column of a month.
func (b *Board) Columns(p core.Period) Columns {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ColumnsOf(b.list, p)
}

// Summary aggregates one month of the board.
func (b *Board) Summary(p core.Period) core.MonthSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Summarize(b.list, p)
}

func (b *Board) snapshotLocked() []core.Transaction {
	out := make([]core.Transaction, len(b.list))
	for i, t := range b.list {
		out[i] = copyTx(t)
	}
	return out
}

func (b *Board) authed(ctx context.Context) context.Context {
	return ports.WithToken(ctx, b.token)
}

func (b *Board) indexOf(id string) int {
	return slices.IndexFunc(b.list, func(t core.Transaction) bool { return t.ID == id })
}

func (b *Board) nextOrderLocked() int {
	next := 0
	for _, t := range b.list {
		if t.Order >= next {
			next = t.Order + 1
		}
	}
	return next
}

func (b *Board) applyPatchLocked(id string, p core.Patch) {
	i := b.indexOf(id)
	if i < 0 {
		return
	}
	b.list[i] = b.list[i].Apply(p)
	if p.Order != nil {
		sortByOrder(b.list)
	}
	if p.Title != nil {
		b.rebuildTagsLocked()
	}
}

// appendLocked adds the records dated in the board's year.
func (b *Board) appendLocked(items ...core.Transaction) {
	for _, t := range items {
		if t.Date.Year() == b.year {
			b.list = append(b.list, t)
		}
	}
	sortByOrder(b.list)
	b.rebuildTagsLocked()
}

// dropForeignLocked removes records whose date left the board's year.
func (b *Board) dropForeignLocked() {
	n := len(b.list)
	b.list = slices.DeleteFunc(b.list, func(t core.Transaction) bool { return t.Date.Year() != b.year })
	if len(b.list) != n {
		b.rebuildTagsLocked()
	}
}

func (b *Board) removeLocked(ids map[string]bool) {
	b.list = slices.DeleteFunc(b.list, func(t core.Transaction) bool { return ids[t.ID] })
	b.rebuildTagsLocked()
}

func (b *Board) rebuildTagsLocked() {
	b.tags = tagIndex(b.list)
}

// fail logs a critical persistence failure, reloads the board to resync
// with the service and returns the wrapped error.
func (b *Board) fail(ctx context.Context, op string, err error) error {
	b.log.LogError(ctx, "Board operation failed, reloading", err, op, applog.NewFields().WithPeriod(b.year, 0))
	if rerr := b.loadLocked(ctx); rerr != nil {
		b.log.LogError(ctx, "Reload after failure failed", rerr, applog.OpLoad, nil)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOperationFailed, err)
}

func sortByOrder(list []core.Transaction) {
	slices.SortStableFunc(list, func(a, b core.Transaction) int { return a.Order - b.Order })
}

func copyTx(t core.Transaction) core.Transaction {
	if t.DateReplicated != nil {
		v := *t.DateReplicated
		t.DateReplicated = &v
	}
	return t
}
