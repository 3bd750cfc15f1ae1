package kanban

import (
	"slices"

	"finanlito/internal/core"
)

// BalanceCheck is the outcome of the paid-transition gate. When OK is false,
// Deficit holds how much the month is short.
type BalanceCheck struct {
	OK        bool
	Available core.Money
	Deficit   core.Money
}

// CheckBalance decides whether an expense of amount can be marked paid in
// month p of list. excludeID names the record being saved, if it already
// exists; it is left out of the paid total. The function never mutates list.
func CheckBalance(list []core.Transaction, p core.Period, amount core.Money, isCreditCard bool, excludeID string) BalanceCheck {
	available := availableIn(list, p, excludeID)
	if isCreditCard {
		return BalanceCheck{OK: true, Available: available}
	}

	if excludeID != "" {
		i := slices.IndexFunc(list, func(t core.Transaction) bool { return t.ID == excludeID })
		if i >= 0 && list[i].Status == core.Paid && amount.Cents <= list[i].Amount.Cents {
			return BalanceCheck{OK: true, Available: available}
		}
	}

	if amount.Cents > available.Cents {
		return BalanceCheck{
			OK:        false,
			Available: available,
			Deficit:   amount.Sub(available),
		}
	}
	return BalanceCheck{OK: true, Available: available}
}

func availableIn(list []core.Transaction, p core.Period, excludeID string) core.Money {
	var income, paid core.Money
	for _, t := range list {
		if !p.Contains(t.Date) {
			continue
		}
		switch {
		case t.Type == core.Income:
			income = income.Add(t.Amount)
		case t.CountsAgainstBalance() && t.ID != excludeID:
			paid = paid.Add(t.Amount)
		}
	}
	return income.Sub(paid)
}

// CanMarkPaid runs CheckBalance against the current sequence.
func (b *Board) CanMarkPaid(p core.Period, amount core.Money, isCreditCard bool, excludeID string) BalanceCheck {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CheckBalance(b.list, p, amount, isCreditCard, excludeID)
}

// needsGate reports whether saving t has to pass the balance gate.
func needsGate(t core.Transaction) bool {
	return t.Type == core.Expense && t.Status == core.Paid
}
