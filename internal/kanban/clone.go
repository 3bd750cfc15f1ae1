package kanban

import (
	"context"
	"fmt"
	"time"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

type CloneResult struct {
	Created []core.Transaction
	// Moved lists the overdue sources deleted after their clone was created.
	Moved []string
}

// CloneDraft copies src one calendar month forward.
//
// Paid sources produce a pending clone. Overdue sources produce a pending
// clone unless the new date is still before the start of now's day, in which
// case the clone stays overdue. DateReplicated keeps the earliest known due
// date across repeated rollovers.
func CloneDraft(src core.Transaction, now time.Time) core.Draft {
	d := src.Draft()
	d.Date = core.AddMonthsOnDay(src.Date, 1, src.Date.Day())
	d.IsReplicated = true
	if src.DateReplicated != nil {
		d.DateReplicated = ptr(*src.DateReplicated)
	} else {
		d.DateReplicated = ptr(src.Date)
	}

	switch src.Status {
	case core.Paid:
		d.Status = core.Pending
	case core.Overdue:
		if !d.Date.Before(core.StartOfDay(now)) {
			d.Status = core.Pending
		}
	}
	return d
}

// Clone copies one record into the next month. An overdue source is moved:
// it is deleted once the clone exists.
func (b *Board) Clone(ctx context.Context, id string) (CloneResult, error) {
	return b.CloneMany(ctx, []string{id})
}

// CloneMany clones a selection. Creations are batched, then the deletions
// of overdue sources are batched.
func (b *Board) CloneMany(ctx context.Context, ids []string) (CloneResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return CloneResult{}, ErrNotLoaded
	}
	return b.cloneLocked(ctx, uniq(ids))
}

// ReplicateMonth clones every record of month p into the following month.
func (b *Board) ReplicateMonth(ctx context.Context, p core.Period) (CloneResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return CloneResult{}, ErrNotLoaded
	}
	var ids []string
	for _, t := range b.list {
		if p.Contains(t.Date) {
			ids = append(ids, t.ID)
		}
	}
	return b.cloneLocked(ctx, ids)
}

func (b *Board) cloneLocked(ctx context.Context, ids []string) (CloneResult, error) {
	if len(ids) == 0 {
		return CloneResult{}, nil
	}
	now := b.opts.Clock()
	next := b.nextOrderLocked()

	drafts := make([]core.Draft, len(ids))
	var moved []string
	for i, id := range ids {
		k := b.indexOf(id)
		if k < 0 {
			return CloneResult{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		src := b.list[k]
		drafts[i] = CloneDraft(src, now)
		drafts[i].Order = next + i
		if src.Status == core.Overdue {
			moved = append(moved, src.ID)
		}
	}
	if err := b.checkDraftsLocked(ctx, drafts, setOf(moved)); err != nil {
		return CloneResult{}, err
	}

	created, err := b.createAll(ctx, drafts)
	if err != nil {
		b.rollbackLocked(ctx, created)
		return CloneResult{}, b.fail(ctx, applog.OpClone, err)
	}
	b.appendLocked(created...)

	if len(moved) > 0 {
		if err := b.deleteAll(ctx, moved); err != nil {
			return CloneResult{}, b.fail(ctx, applog.OpDelete, err)
		}
		b.removeLocked(setOf(moved))
	}

	b.log.InfoContext(ctx, "Transactions cloned",
		applog.FieldCount, len(created),
		"moved", len(moved))
	return CloneResult{Created: created, Moved: moved}, nil
}
