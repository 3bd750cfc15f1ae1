package kanban

import (
	"cmp"
	"slices"

	"finanlito/internal/core"
)

// Columns holds the three status columns of one month in display order.
type Columns struct {
	Period  core.Period
	Pending []core.Transaction
	Overdue []core.Transaction
	Paid    []core.Transaction
}

// Get returns the column of a status.
func (c Columns) Get(s core.Status) []core.Transaction {
	switch s {
	case core.Pending:
		return c.Pending
	case core.Overdue:
		return c.Overdue
	case core.Paid:
		return c.Paid
	}
	return nil
}

// ColumnOf filters list by month and status and orders the result by order
// key. The input is not modified.
func ColumnOf(list []core.Transaction, p core.Period, s core.Status) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range list {
		if t.Status == s && p.Contains(t.Date) {
			out = append(out, copyTx(t))
		}
	}
	sortByOrder(out)
	return out
}

func ColumnsOf(list []core.Transaction, p core.Period) Columns {
	return Columns{
		Period:  p,
		Pending: ColumnOf(list, p, core.Pending),
		Overdue: ColumnOf(list, p, core.Overdue),
		Paid:    ColumnOf(list, p, core.Paid),
	}
}

// Summarize aggregates the totals of one month.
func Summarize(list []core.Transaction, p core.Period) core.MonthSummary {
	s := core.MonthSummary{Period: p}
	byCat := map[string]int64{}

	for _, t := range list {
		if !p.Contains(t.Date) {
			continue
		}
		if t.Type == core.Income {
			s.Income = s.Income.Add(t.Amount)
			continue
		}
		s.Expense = s.Expense.Add(t.Amount)
		byCat[core.NormalizeCategory(t.Category)] += t.Amount.Cents
		if t.IsCreditCard {
			s.CreditCard = s.CreditCard.Add(t.Amount)
		}
		switch t.Status {
		case core.Paid:
			if !t.IsCreditCard {
				s.Paid = s.Paid.Add(t.Amount)
			}
		case core.Pending:
			s.Pending = s.Pending.Add(t.Amount)
		case core.Overdue:
			s.Overdue = s.Overdue.Add(t.Amount)
		}
	}
	s.Available = s.Income.Sub(s.Paid)

	for name, cents := range byCat {
		s.ByCategory = append(s.ByCategory, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	slices.SortFunc(s.ByCategory, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return s
}
