package kanban

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

// MigrateOverdue flips every pending record dated before the start of now's
// day to overdue. It returns the new list and the ids that changed; running
// it again on its own output changes nothing.
func MigrateOverdue(list []core.Transaction, now time.Time) ([]core.Transaction, []string) {
	cutoff := core.StartOfDay(now)
	out := make([]core.Transaction, len(list))
	var changed []string
	for i, t := range list {
		out[i] = copyTx(t)
		if t.Status == core.Pending && t.Date.Before(cutoff) {
			out[i].Status = core.Overdue
			changed = append(changed, t.ID)
		}
	}
	return out, changed
}

// MigrateOverdue reruns the migration against the board, e.g. after the
// day rolled over, and returns how many records changed.
func (b *Board) MigrateOverdue(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return 0, ErrNotLoaded
	}
	return b.migrateLocked(ctx, b.opts.Clock()), nil
}

// migrateLocked applies the migration in memory and persists the status
// changes. Failures are logged only; memory stays authoritative.
func (b *Board) migrateLocked(ctx context.Context, now time.Time) int {
	out, changed := MigrateOverdue(b.list, now)
	b.list = out
	if len(changed) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(b.authed(ctx))
	g.SetLimit(b.opts.Concurrency)
	for _, id := range changed {
		g.Go(func() error {
			if err := b.svc.Update(gctx, id, core.Patch{Status: ptr(core.Overdue)}); err != nil {
				b.log.LogError(ctx, "Failed to persist overdue status", err, applog.OpMigrate,
					applog.NewFields().WithTransaction(id, "", 0, string(core.Overdue)))
			}
			return nil
		})
	}
	_ = g.Wait()

	b.log.InfoContext(ctx, "Overdue migration applied", applog.FieldCount, len(changed))
	return len(changed)
}
