package kanban

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"finanlito/internal/core"
	applog "finanlito/internal/log"
)

// CreateOptions controls Board.Create.
type CreateOptions struct {
	// Installments splits the draft into a monthly plan of that many
	// records. Zero or one creates a single record.
	Installments int
	AllowDeficit bool
}

type CreateResult struct {
	Applied bool
	Balance BalanceCheck
	Created []core.Transaction
}

type DeleteResult struct {
	Deleted   []string
	Reindexed []core.Transaction
	// Years lists the years other than the board's whose stored records
	// were re-indexed.
	Years []int
}

// ExpandInstallments turns a draft into n monthly records titled
// "base (k/n)". Dates advance one month per installment, clamped to the last
// day of shorter months against the first date's day. Only the first record
// keeps the draft status; the rest are pending.
func ExpandInstallments(d core.Draft, n int) ([]core.Draft, error) {
	if n < 0 {
		return nil, ErrInvalidInstallments
	}
	if n <= 1 {
		return []core.Draft{d}, nil
	}
	out := make([]core.Draft, n)
	for i := range n {
		c := d
		c.Title = core.FormatInstallmentTitle(d.Title, i+1, n)
		c.Date = core.AddMonthsOnDay(d.Date, i, d.Date.Day())
		if i > 0 {
			c.Status = core.Pending
		}
		out[i] = c
	}
	return out, nil
}

// FindInstallmentConflict returns a record of list, other than the excluded
// ids, that belongs to the same installment plan as title and falls in the
// month of date.
func FindInstallmentConflict(list []core.Transaction, title string, date time.Time, exclude ...string) (core.Transaction, bool) {
	return findConflict(list, tagIndex(list), title, date, setOf(exclude))
}

func findConflict(list []core.Transaction, tags map[string]core.Installment, title string, date time.Time, exclude map[string]bool) (core.Transaction, bool) {
	want, ok := core.ParseInstallment(title)
	if !ok {
		return core.Transaction{}, false
	}
	p := core.PeriodOf(date)
	for _, t := range list {
		if exclude[t.ID] {
			continue
		}
		tag, ok := tags[t.ID]
		if ok && tag.Key() == want.Key() && p.Contains(t.Date) {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// checkDraftsLocked runs the duplicate guard over a batch of drafts, against
// the board, against the stored months of other years the drafts land in and
// against the drafts accepted before them.
func (b *Board) checkDraftsLocked(ctx context.Context, drafts []core.Draft, exclude map[string]bool) error {
	var months []core.Period
	for _, d := range drafts {
		if _, ok := core.ParseInstallment(d.Title); ok && d.Date.Year() != b.year {
			months = append(months, core.PeriodOf(d.Date))
		}
	}
	foreign, err := b.foreignMonthsLocked(ctx, months)
	if err != nil {
		return err
	}

	pending := append(slices.Clone(b.list), foreign...)
	tags := make(map[string]core.Installment, len(b.tags)+len(foreign)+len(drafts))
	for id, tag := range b.tags {
		tags[id] = tag
	}
	for id, tag := range tagIndex(foreign) {
		tags[id] = tag
	}
	for i, d := range drafts {
		if other, ok := findConflict(pending, tags, d.Title, d.Date, exclude); ok {
			return fmt.Errorf("%q in %s: %w (conflicts with %q)", d.Title, d.Date.Format("2006-01"), ErrDuplicateInstallment, other.Title)
		}
		if tag, ok := core.ParseInstallment(d.Title); ok {
			id := fmt.Sprintf("\x00draft-%d", i)
			pending = append(pending, d.WithID(id))
			tags[id] = tag
		}
	}
	return nil
}

// foreignMonthsLocked lists the stored records of months outside the board's
// year that the board does not hold.
func (b *Board) foreignMonthsLocked(ctx context.Context, months []core.Period) ([]core.Transaction, error) {
	var out []core.Transaction
	seen := map[core.Period]bool{}
	for _, p := range months {
		if p.Year == b.year || seen[p] {
			continue
		}
		seen[p] = true
		list, err := b.svc.List(b.authed(ctx), p.Year, int(p.Month))
		if err != nil {
			return nil, fmt.Errorf("list %d-%02d: %w: %w", p.Year, p.Month, ErrOperationFailed, err)
		}
		for _, t := range list {
			if b.indexOf(t.ID) < 0 {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// groupReachLocked returns the years other than the board's that the installment
// groups touched by ids can occupy, judged from the members the board holds.
func (b *Board) groupReachLocked(ids []string) ([]int, map[core.GroupKey]bool) {
	gone := setOf(ids)
	keys := map[core.GroupKey]bool{}
	for _, t := range b.list {
		if tag, ok := b.tags[t.ID]; ok && gone[t.ID] {
			keys[tag.Key()] = true
		}
	}
	var years []int
	for _, t := range b.list {
		tag, ok := b.tags[t.ID]
		if !ok || !keys[tag.Key()] {
			continue
		}
		p := core.PeriodOf(t.Date)
		first, last := p.Add(-(tag.Index - 1)), p.Add(tag.Size-tag.Index)
		for y := first.Year; y <= last.Year; y++ {
			if y != b.year && !slices.Contains(years, y) {
				years = append(years, y)
			}
		}
	}
	slices.Sort(years)
	return years, keys
}

// groupSiblingsLocked lists the members of the groups touched by ids that
// are stored in other years.
func (b *Board) groupSiblingsLocked(ctx context.Context, ids []string) ([]core.Transaction, error) {
	years, keys := b.groupReachLocked(ids)
	var out []core.Transaction
	for _, y := range years {
		list, err := b.svc.List(b.authed(ctx), y, 0)
		if err != nil {
			return nil, fmt.Errorf("list %d: %w", y, err)
		}
		for _, t := range list {
			if tag, ok := core.ParseInstallment(t.Title); ok && keys[tag.Key()] && b.indexOf(t.ID) < 0 {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Create validates the draft, expands it into installments when requested,
// checks for duplicate installments and the balance gate, then creates every
// record in one batch.
func (b *Board) Create(ctx context.Context, d core.Draft, opts CreateOptions) (CreateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return CreateResult{}, ErrNotLoaded
	}
	d.Category = core.NormalizeCategory(d.Category)
	if err := d.Validate(); err != nil {
		return CreateResult{}, err
	}

	drafts, err := ExpandInstallments(d, opts.Installments)
	if err != nil {
		return CreateResult{}, err
	}
	if err := b.checkDraftsLocked(ctx, drafts, nil); err != nil {
		return CreateResult{}, err
	}

	check := BalanceCheck{OK: true}
	first := drafts[0].WithID("")
	if needsGate(first) {
		check = CheckBalance(b.list, core.PeriodOf(first.Date), first.Amount, first.IsCreditCard, "")
		if !check.OK && !opts.AllowDeficit {
			return CreateResult{Applied: false, Balance: check}, nil
		}
	}

	next := b.nextOrderLocked()
	for i := range drafts {
		drafts[i].Order = next + i
	}

	created, err := b.createAll(ctx, drafts)
	if err != nil {
		b.rollbackLocked(ctx, created)
		return CreateResult{}, b.fail(ctx, applog.OpCreate, err)
	}
	b.appendLocked(created...)

	b.log.InfoContext(ctx, "Transactions created",
		applog.FieldTxTitle, d.Title,
		applog.FieldCount, len(created))
	return CreateResult{Applied: true, Balance: check, Created: created}, nil
}

// PlanReindex computes the survivors of every installment group touched by
// deleted. Survivors are sorted by date, retitled 1/m..m/m and re-dated from
// the earliest one, keeping its day of month. Only records whose title or
// date changes are returned.
func PlanReindex(list []core.Transaction, deleted []string) []core.Transaction {
	gone := setOf(deleted)
	tags := tagIndex(list)

	var keys []core.GroupKey
	for _, t := range list {
		if !gone[t.ID] {
			continue
		}
		if tag, ok := tags[t.ID]; ok && !slices.Contains(keys, tag.Key()) {
			keys = append(keys, tag.Key())
		}
	}

	var out []core.Transaction
	for _, key := range keys {
		var survivors []core.Transaction
		for _, t := range list {
			if tag, ok := tags[t.ID]; ok && !gone[t.ID] && tag.Key() == key {
				survivors = append(survivors, copyTx(t))
			}
		}
		if len(survivors) == 0 {
			continue
		}
		slices.SortStableFunc(survivors, func(a, b core.Transaction) int {
			if c := a.Date.Compare(b.Date); c != 0 {
				return c
			}
			return cmp.Compare(a.Order, b.Order)
		})

		anchor := survivors[0].Date
		for idx, s := range survivors {
			title := core.FormatInstallmentTitle(key.Base, idx+1, len(survivors))
			date := core.AddMonthsOnDay(anchor, idx, anchor.Day())
			if s.Title == title && s.Date.Equal(date) {
				continue
			}
			s.Title = title
			s.Date = date
			out = append(out, s)
		}
	}
	return out
}

// Delete removes one record and re-indexes its installment siblings.
func (b *Board) Delete(ctx context.Context, id string) (DeleteResult, error) {
	return b.DeleteMany(ctx, []string{id})
}

// DeleteMany removes a selection. Survivor updates are sent as one batch
// before the deletes.
func (b *Board) DeleteMany(ctx context.Context, ids []string) (DeleteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return DeleteResult{}, ErrNotLoaded
	}
	ids = uniq(ids)
	for _, id := range ids {
		if b.indexOf(id) < 0 {
			return DeleteResult{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
	}
	if len(ids) == 0 {
		return DeleteResult{}, nil
	}

	siblings, err := b.groupSiblingsLocked(ctx, ids)
	if err != nil {
		return DeleteResult{}, b.fail(ctx, applog.OpReindex, err)
	}
	plan := PlanReindex(append(slices.Clone(b.list), siblings...), ids)

	next := b.nextOrderLocked()
	updates := make([]update, len(plan))
	var years []int
	for i, s := range plan {
		p := core.Patch{Title: ptr(s.Title), Date: ptr(s.Date)}
		if b.indexOf(s.ID) < 0 {
			years = appendYear(years, b.year, siblingYear(siblings, s.ID))
			if s.Date.Year() == b.year {
				plan[i].Order = next
				p.Order = ptr(next)
				next++
			}
		}
		years = appendYear(years, b.year, s.Date.Year())
		updates[i] = update{ID: s.ID, Patch: p}
	}
	if err := b.updateAll(ctx, updates); err != nil {
		return DeleteResult{}, b.fail(ctx, applog.OpReindex, err)
	}
	if err := b.deleteAll(ctx, ids); err != nil {
		return DeleteResult{}, b.fail(ctx, applog.OpDelete, err)
	}

	for i, u := range updates {
		if b.indexOf(u.ID) >= 0 {
			b.applyPatchLocked(u.ID, u.Patch)
		} else {
			b.appendLocked(plan[i])
		}
	}
	b.removeLocked(setOf(ids))
	b.dropForeignLocked()

	if len(plan) > 0 {
		b.log.InfoContext(ctx, "Installments reindexed",
			applog.FieldCount, len(plan),
			"other_years", len(years))
	}
	slices.Sort(years)
	return DeleteResult{Deleted: ids, Reindexed: plan, Years: years}, nil
}

func siblingYear(list []core.Transaction, id string) int {
	for _, t := range list {
		if t.ID == id {
			return t.Date.Year()
		}
	}
	return 0
}

func appendYear(years []int, own, y int) []int {
	if y == 0 || y == own || slices.Contains(years, y) {
		return years
	}
	return append(years, y)
}

func tagIndex(list []core.Transaction) map[string]core.Installment {
	tags := make(map[string]core.Installment, len(list))
	for _, t := range list {
		if tag, ok := core.ParseInstallment(t.Title); ok {
			tags[t.ID] = tag
		}
	}
	return tags
}

func setOf(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
