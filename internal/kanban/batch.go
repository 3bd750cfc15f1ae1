package kanban

import (
	"context"

	"golang.org/x/sync/errgroup"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

type update struct {
	ID    string
	Patch core.Patch
}

// createAll creates every draft with bounded concurrency. The returned slice
// keeps the draft positions; entries whose creation did not complete have an
// empty ID.
func (b *Board) createAll(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(drafts))
	g, gctx := errgroup.WithContext(b.authed(ctx))
	g.SetLimit(b.opts.Concurrency)
	for i, d := range drafts {
		g.Go(func() error {
			t, err := b.svc.Create(gctx, d)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	return out, g.Wait()
}

func (b *Board) updateAll(ctx context.Context, updates []update) error {
	g, gctx := errgroup.WithContext(b.authed(ctx))
	g.SetLimit(b.opts.Concurrency)
	for _, u := range updates {
		g.Go(func() error {
			return b.svc.Update(gctx, u.ID, u.Patch)
		})
	}
	return g.Wait()
}

func (b *Board) deleteAll(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(b.authed(ctx))
	g.SetLimit(b.opts.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			return b.svc.Delete(gctx, id)
		})
	}
	return g.Wait()
}

// rollbackLocked removes records created by a batch that failed half way.
// It only runs when RollbackPartialBatches is enabled.
func (b *Board) rollbackLocked(ctx context.Context, created []core.Transaction) {
	if !b.opts.RollbackPartialBatches {
		return
	}
	var ids []string
	for _, t := range created {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := b.deleteAll(context.WithoutCancel(ctx), ids); err != nil {
		b.log.LogError(ctx, "Failed to roll back partial batch", err, applog.OpDelete, applog.NewFields().WithCount(len(ids)))
		return
	}
	b.log.WarnContext(ctx, "Rolled back partial batch", applog.FieldCount, len(ids))
}

func ptr[T any](v T) *T { return &v }
