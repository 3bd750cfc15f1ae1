package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const transactionColumns = `id, owner, title, description, amount_cents, type, status, date, year, month,
date_replicated, is_replicated, is_credit_card, category, sort_order`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.Owner,
		&t.Title,
		&t.Description,
		&t.AmountCents,
		&t.Type,
		&t.Status,
		&t.Date,
		&t.Year,
		&t.Month,
		&t.DateReplicated,
		&t.IsReplicated,
		&t.IsCreditCard,
		&t.Category,
		&t.SortOrder,
	)
	return t, err
}

const createTransaction = `INSERT INTO transactions (
    id, owner, title, description, amount_cents, type, status, date, year, month,
    date_replicated, is_replicated, is_credit_card, category, sort_order
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
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

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.ID,
		arg.Owner,
		arg.Title,
		arg.Description,
		arg.AmountCents,
		arg.Type,
		arg.Status,
		arg.Date,
		arg.Year,
		arg.Month,
		arg.DateReplicated,
		arg.IsReplicated,
		arg.IsCreditCard,
		arg.Category,
		arg.SortOrder,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND owner = ?`

func (q *Queries) GetTransaction(ctx context.Context, id, owner string) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id, owner)
	return scanTransaction(row)
}

const listTransactionsByYear = `SELECT ` + transactionColumns + `
FROM transactions
WHERE owner = ? AND year = ?
ORDER BY rowid`

const listTransactionsByMonth = `SELECT ` + transactionColumns + `
FROM transactions
WHERE owner = ? AND year = ? AND month = ?
ORDER BY rowid`

func (q *Queries) ListTransactionsByYear(ctx context.Context, owner string, year int64) ([]Transaction, error) {
	return q.list(ctx, listTransactionsByYear, owner, year)
}

func (q *Queries) ListTransactionsByMonth(ctx context.Context, owner string, year, month int64) ([]Transaction, error) {
	return q.list(ctx, listTransactionsByMonth, owner, year, month)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransaction = `UPDATE transactions SET
    title = ?, description = ?, amount_cents = ?, type = ?, status = ?, date = ?, year = ?, month = ?,
    date_replicated = ?, is_replicated = ?, is_credit_card = ?, category = ?, sort_order = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner = ?`

type UpdateTransactionParams struct {
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
	ID             string
	Owner          string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Title,
		arg.Description,
		arg.AmountCents,
		arg.Type,
		arg.Status,
		arg.Date,
		arg.Year,
		arg.Month,
		arg.DateReplicated,
		arg.IsReplicated,
		arg.IsCreditCard,
		arg.Category,
		arg.SortOrder,
		arg.ID,
		arg.Owner,
	)
	return err
}

const updateTransactionOrder = `UPDATE transactions SET sort_order = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner = ?`

func (q *Queries) UpdateTransactionOrder(ctx context.Context, sortOrder int64, id, owner string) error {
	_, err := q.db.ExecContext(ctx, updateTransactionOrder, sortOrder, id, owner)
	return err
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ? AND owner = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id, owner string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id, owner)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getCategories = `SELECT name FROM categories ORDER BY position, name`

func (q *Queries) GetCategories(ctx context.Context) ([]string, error) {
	return q.names(ctx, getCategories)
}

const getUsedCategories = `SELECT DISTINCT category FROM transactions WHERE owner = ? ORDER BY category`

func (q *Queries) GetUsedCategories(ctx context.Context, owner string) ([]string, error) {
	return q.names(ctx, getUsedCategories, owner)
}

func (q *Queries) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
