package storage

import "database/sql"

// Transaction is one row of the transactions table.
type Transaction struct {
	ID             string
	Owner          string
	Title          string
	Description    string
	AmountCents    int64
	Type           string
	Status         string
	Date           string
	Year           int64
	Month          int64
	DateReplicated sql.NullString
	IsReplicated   bool
	IsCreditCard   bool
	Category       string
	SortOrder      sql.NullInt64
}
