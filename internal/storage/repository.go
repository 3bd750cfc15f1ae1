package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"finanlito/internal/core"
	"finanlito/internal/ports"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ ports.TransactionService = (*SQLiteRepository)(nil)
	_ ports.CategoryLister     = (*SQLiteRepository)(nil)
)

// dateLayout keeps the offset so the stored month matches the caller's.
const dateLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer; the board fans out batch writes
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// List returns the caller's records of a year, or of one month, in insertion
// order.
func (r *SQLiteRepository) List(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Transaction
	if month == 0 {
		rows, err = r.queries.ListTransactionsByYear(ctx, owner, int64(year))
	} else {
		rows, err = r.queries.ListTransactionsByMonth(ctx, owner, int64(year), int64(month))
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions %d/%d: %w", month, year, err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t := d.WithID(uuid.NewString())
	p := rowFromCore(t, owner)
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:             p.ID,
		Owner:          p.Owner,
		Title:          p.Title,
		Description:    p.Description,
		AmountCents:    p.AmountCents,
		Type:           p.Type,
		Status:         p.Status,
		Date:           p.Date,
		Year:           p.Year,
		Month:          p.Month,
		DateReplicated: p.DateReplicated,
		IsReplicated:   p.IsReplicated,
		IsCreditCard:   p.IsCreditCard,
		Category:       p.Category,
		SortOrder:      p.SortOrder,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"title", row.Title,
		"amount_cents", row.AmountCents,
		"year", row.Year,
		"month", row.Month)

	return row.toCore()
}

// Update reads the row, applies the patch and writes it back in one
// database transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id string, p core.Patch) error {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	row, err := q.GetTransaction(ctx, id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	cur, err := row.toCore()
	if err != nil {
		return fmt.Errorf("decode transaction %s: %w", id, err)
	}

	next := cur.Apply(p)
	if err := next.Validate(); err != nil {
		return err
	}
	n := rowFromCore(next, owner)
	if err := q.UpdateTransaction(ctx, UpdateTransactionParams{
		Title:          n.Title,
		Description:    n.Description,
		AmountCents:    n.AmountCents,
		Type:           n.Type,
		Status:         n.Status,
		Date:           n.Date,
		Year:           n.Year,
		Month:          n.Month,
		DateReplicated: n.DateReplicated,
		IsReplicated:   n.IsReplicated,
		IsCreditCard:   n.IsCreditCard,
		Category:       n.Category,
		SortOrder:      n.SortOrder,
		ID:             id,
		Owner:          owner,
	}); err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}
	n, err := r.queries.DeleteTransaction(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

// UpdateOrder writes the whole order vector in one database transaction.
// Unknown ids are ignored.
func (r *SQLiteRepository) UpdateOrder(ctx context.Context, items []core.OrderItem) error {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order update: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	for _, it := range items {
		if err := q.UpdateTransactionOrder(ctx, int64(it.Order), it.ID, owner); err != nil {
			return fmt.Errorf("update order of %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order update: %w", err)
	}

	slog.DebugContext(ctx, "Order vector saved", "count", len(items))
	return nil
}

// Categories returns the seeded categories followed by any custom ones used
// in the caller's records.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	owner, err := ports.RequireToken(ctx)
	if err != nil {
		return nil, err
	}
	seeded, err := r.queries.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	used, err := r.queries.GetUsedCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get used categories: %w", err)
	}

	seen := make(map[string]bool, len(seeded)+len(used))
	out := make([]string, 0, len(seeded)+len(used))
	for _, c := range append(seeded, used...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func rowFromCore(t core.Transaction, owner string) Transaction {
	row := Transaction{
		ID:           t.ID,
		Owner:        owner,
		Title:        t.Title,
		Description:  t.Description,
		AmountCents:  t.Amount.Cents,
		Type:         string(t.Type),
		Status:       string(t.Status),
		Date:         t.Date.Format(dateLayout),
		Year:         int64(t.Date.Year()),
		Month:        int64(t.Date.Month()),
		IsReplicated: t.IsReplicated,
		IsCreditCard: t.IsCreditCard,
		Category:     core.NormalizeCategory(t.Category),
	}
	if t.DateReplicated != nil {
		row.DateReplicated = sql.NullString{String: t.DateReplicated.Format(dateLayout), Valid: true}
	}
	if t.Order >= 0 {
		row.SortOrder = sql.NullInt64{Int64: int64(t.Order), Valid: true}
	}
	return row
}

func (row Transaction) toCore() (core.Transaction, error) {
	date, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", row.Date, err)
	}
	t := core.Transaction{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Amount:       core.Money{Cents: row.AmountCents},
		Type:         core.TransactionType(row.Type),
		Status:       core.Status(row.Status),
		Date:         date,
		IsReplicated: row.IsReplicated,
		IsCreditCard: row.IsCreditCard,
		Category:     row.Category,
		Order:        core.NoOrder,
	}
	if row.DateReplicated.Valid {
		dr, err := time.Parse(dateLayout, row.DateReplicated.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse replicated date %q: %w", row.DateReplicated.String, err)
		}
		t.DateReplicated = &dr
	}
	if row.SortOrder.Valid {
		t.Order = int(row.SortOrder.Int64)
	}
	return t, nil
}
