package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthSummary is a compact summary of one board month.
type MonthSummary struct {
	Period     Period
	Income     Money
	Expense    Money
	Paid       Money // paid expenses, credit card excluded
	Pending    Money // pending expenses
	Overdue    Money // overdue expenses
	CreditCard Money // expenses flagged as credit card
	Available  Money // Income - Paid
	ByCategory []CategoryAmount
}
