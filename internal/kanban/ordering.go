package kanban

import (
	"context"
	"fmt"
	"slices"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

// Move describes a drop of one card into a column slot.
type Move struct {
	ID     string
	Status core.Status
	// Index is the visual position inside the target column.
	Index int
	// AllowDeficit lets an expense become paid even when the month balance
	// does not cover it.
	AllowDeficit bool
}

type MoveResult struct {
	Applied     bool
	Balance     BalanceCheck
	Transaction core.Transaction
}

// Reorder removes the record id from list, gives it status and inserts it
// at the global position matching visual slot index of the target column.
// The column is the record's own month. Orders of the result are 0..N-1.
func Reorder(list []core.Transaction, id string, status core.Status, index int) ([]core.Transaction, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	from := slices.IndexFunc(list, func(t core.Transaction) bool { return t.ID == id })
	if from < 0 {
		return nil, ErrNotFound
	}

	moved := copyTx(list[from])
	rest := make([]core.Transaction, 0, len(list))
	for i, t := range list {
		if i != from {
			rest = append(rest, copyTx(t))
		}
	}
	sortByOrder(rest)
	moved.Status = status

	period := core.PeriodOf(moved.Date)
	var members []int
	for i, t := range rest {
		if t.Status == status && period.Contains(t.Date) {
			members = append(members, i)
		}
	}

	if index < 0 {
		index = 0
	}
	var at int
	switch {
	case len(members) == 0:
		at = len(rest)
	case index >= len(members):
		at = members[len(members)-1] + 1
	default:
		at = members[index]
	}
	at = max(0, min(at, len(rest)))

	out := slices.Insert(rest, at, moved)
	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

// Reposition applies a drag and drop. Expenses entering the paid column go
// through the balance gate first; a refused gate leaves the board untouched
// and returns Applied false. The order vector is persisted before the
// status change, which is awaited.
func (b *Board) Reposition(ctx context.Context, m Move) (MoveResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return MoveResult{}, ErrNotLoaded
	}
	i := b.indexOf(m.ID)
	if i < 0 {
		return MoveResult{}, ErrNotFound
	}
	if !m.Status.Valid() {
		return MoveResult{}, ErrInvalidStatus
	}
	cur := b.list[i]

	var check BalanceCheck
	if cur.Type == core.Expense && m.Status == core.Paid && cur.Status != core.Paid {
		check = CheckBalance(b.list, core.PeriodOf(cur.Date), cur.Amount, cur.IsCreditCard, cur.ID)
		if !check.OK && !m.AllowDeficit {
			b.log.InfoContext(ctx, "Move refused by balance gate",
				applog.FieldTxID, cur.ID,
				applog.FieldAmountCents, check.Deficit.Cents)
			return MoveResult{Applied: false, Balance: check, Transaction: cur}, nil
		}
	} else {
		check = BalanceCheck{OK: true}
	}

	next, err := Reorder(b.list, m.ID, m.Status, m.Index)
	if err != nil {
		return MoveResult{}, err
	}

	items := make([]core.OrderItem, len(next))
	for k, t := range next {
		items[k] = core.OrderItem{ID: t.ID, Order: t.Order}
	}
	b.list = next
	b.persistOrderLocked(ctx, items)

	if cur.Status != m.Status {
		if err := b.svc.Update(b.authed(ctx), m.ID, core.Patch{Status: ptr(m.Status)}); err != nil {
			return MoveResult{}, b.fail(ctx, applog.OpUpdate, fmt.Errorf("status of %s: %w", m.ID, err))
		}
	}

	moved := b.list[b.indexOf(m.ID)]
	return MoveResult{Applied: true, Balance: check, Transaction: copyTx(moved)}, nil
}
