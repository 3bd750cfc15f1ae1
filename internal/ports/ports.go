// Package ports declares the outbound interfaces of the finance board.
package ports

import (
	"context"
	"errors"
	"strings"
	"time"

	"finanlito/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionService is the remote CRUD contract the board is kept in
	// sync with. Every call carries the caller's bearer credential in ctx.
	TransactionService interface {
		// List returns the records of a year, or of one month when month is 1-12.
		// A month of 0 lists the whole year.
		List(ctx context.Context, year int, month int) ([]core.Transaction, error)
		Create(ctx context.Context, d core.Draft) (core.Transaction, error)
		Update(ctx context.Context, id string, p core.Patch) error
		Delete(ctx context.Context, id string) error
		UpdateOrder(ctx context.Context, items []core.OrderItem) error
	}

	// CategoryLister returns the categories known for the caller.
	CategoryLister interface {
		Categories(ctx context.Context) ([]string, error)
	}

	// JournalWriter appends one audit row per transaction change.
	JournalWriter interface {
		AppendEntry(ctx context.Context, e JournalEntry) (rowRef string, err error)
	}
)

// JournalEntry is a flattened change record for external ledgers. Fields
// an event did not carry are empty.
type JournalEntry struct {
	At            time.Time
	Event         string
	TransactionID string
	Title         string
	Amount        string
	Type          string
	Status        string
	Date          string
	Category      string
	CreditCard    bool
	Changes       []string
	Count         int
}

var (
	ErrUnauthorized = errors.New("missing or invalid credential")
	ErrNotFound     = errors.New("transaction not found")
)

type tokenKey struct{}

// WithToken attaches the bearer credential to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer credential carried by ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	if !ok || strings.TrimSpace(tok) == "" {
		return "", false
	}
	return tok, true
}

// RequireToken is TokenFrom returning ErrUnauthorized when absent.
func RequireToken(ctx context.Context) (string, error) {
	tok, ok := TokenFrom(ctx)
	if !ok {
		return "", ErrUnauthorized
	}
	return tok, nil
}
