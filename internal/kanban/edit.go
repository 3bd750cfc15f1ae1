package kanban

import (
	"context"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

type UpdateOptions struct {
	AllowDeficit bool
}

type UpdateResult struct {
	Applied     bool
	Balance     BalanceCheck
	Transaction core.Transaction
}

// Update applies an edit form patch. The edited record goes through the
// duplicate installment guard and, when it ends up as a paid expense, the
// balance gate.
func (b *Board) Update(ctx context.Context, id string, p core.Patch, opts UpdateOptions) (UpdateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return UpdateResult{}, ErrNotLoaded
	}
	i := b.indexOf(id)
	if i < 0 {
		return UpdateResult{}, ErrNotFound
	}
	cur := b.list[i]
	if p.IsEmpty() {
		return UpdateResult{Applied: true, Balance: BalanceCheck{OK: true}, Transaction: copyTx(cur)}, nil
	}

	next := cur.Apply(p)
	if err := next.Validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := b.checkDraftsLocked(ctx, []core.Draft{next.Draft()}, map[string]bool{id: true}); err != nil {
		return UpdateResult{}, err
	}

	check := BalanceCheck{OK: true}
	if needsGate(next) {
		check = CheckBalance(b.list, core.PeriodOf(next.Date), next.Amount, next.IsCreditCard, id)
		if !check.OK && !opts.AllowDeficit {
			return UpdateResult{Applied: false, Balance: check, Transaction: copyTx(cur)}, nil
		}
	}

	if err := b.svc.Update(b.authed(ctx), id, p); err != nil {
		return UpdateResult{}, b.fail(ctx, applog.OpUpdate, err)
	}
	updated := next
	b.applyPatchLocked(id, p)
	if k := b.indexOf(id); k >= 0 {
		updated = b.list[k]
	}
	b.dropForeignLocked()
	return UpdateResult{Applied: true, Balance: check, Transaction: copyTx(updated)}, nil
}

// RenameCategory moves every record of category from to category to and
// returns how many were changed.
func (b *Board) RenameCategory(ctx context.Context, from, to string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return 0, ErrNotLoaded
	}
	return b.recategorizeLocked(ctx, core.NormalizeCategory(from), core.NormalizeCategory(to))
}

// DeleteCategory reassigns the records of a category to the fallback bucket.
func (b *Board) DeleteCategory(ctx context.Context, name string) (int, error) {
	return b.RenameCategory(ctx, name, core.FallbackCategory)
}

func (b *Board) recategorizeLocked(ctx context.Context, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	var updates []update
	for _, t := range b.list {
		if core.NormalizeCategory(t.Category) == from {
			updates = append(updates, update{ID: t.ID, Patch: core.Patch{Category: ptr(to)}})
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err := b.updateAll(ctx, updates); err != nil {
		return 0, b.fail(ctx, applog.OpRecategor, err)
	}
	for _, u := range updates {
		b.applyPatchLocked(u.ID, u.Patch)
	}

	b.log.InfoContext(ctx, "Category reassigned",
		"from", from,
		"to", to,
		applog.FieldCount, len(updates))
	return len(updates), nil
}
