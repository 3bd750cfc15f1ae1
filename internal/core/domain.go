package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Pending Status = "pending"
	Paid    Status = "paid"
	Overdue Status = "overdue"
)

// NoOrder marks a record that was stored before explicit ordering existed.
const NoOrder = -1

// FallbackCategory is the bucket used when a record has no category.
const FallbackCategory = "Outros"

// Statuses lists the board columns in display order.
var Statuses = []Status{Pending, Overdue, Paid}

// DefaultCategories are offered before the user defines any of their own.
var DefaultCategories = []string{
	"Alimentação",
	"Moradia",
	"Transporte",
	"Saúde",
	"Educação",
	"Lazer",
	"Salário",
	FallbackCategory,
}

type (
	TransactionType string

	Status string

	Money struct {
		Cents int64
	}

	// Transaction is one line item of the finance board.
	Transaction struct {
		ID          string
		Title       string
		Description string
		Amount      Money
		Type        TransactionType
		Status      Status
		Date        time.Time
		// DateReplicated keeps the original due date of a record that was
		// rolled forward by a clone.
		DateReplicated *time.Time
		IsReplicated   bool
		IsCreditCard   bool
		Category       string
		Order          int
	}

	// Draft is a transaction that has not been assigned an identity yet.
	Draft struct {
		Title          string
		Description    string
		Amount         Money
		Type           TransactionType
		Status         Status
		Date           time.Time
		DateReplicated *time.Time
		IsReplicated   bool
		IsCreditCard   bool
		Category       string
		Order          int
	}

	// Patch carries a partial update; nil fields are left untouched.
	Patch struct {
		Title          *string
		Description    *string
		Amount         *Money
		Type           *TransactionType
		Status         *Status
		Date           *time.Time
		DateReplicated *time.Time
		IsReplicated   *bool
		IsCreditCard   *bool
		Category       *string
		Order          *int
	}

	// OrderItem pairs a record with its new global order key.
	OrderItem struct {
		ID    string
		Order int
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidStatus = errors.New("invalid status")
	ErrEmptyTitle    = errors.New("empty title")
	ErrZeroDate      = errors.New("date cannot be zero")
	ErrReplicatedAt  = errors.New("replicated date is after date")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s Status) Valid() bool {
	switch s {
	case Pending, Paid, Overdue:
		return true
	default:
		return false
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	if len(d.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if !d.Status.Valid() {
		return ErrInvalidStatus
	}
	if d.Date.IsZero() {
		return ErrZeroDate
	}
	if d.DateReplicated != nil && d.DateReplicated.After(d.Date) {
		return ErrReplicatedAt
	}
	return nil
}

// Validate checks the same rules as Draft.Validate.
func (t Transaction) Validate() error {
	return t.Draft().Validate()
}

// Draft strips the identity of t.
func (t Transaction) Draft() Draft {
	return Draft{
		Title:          t.Title,
		Description:    t.Description,
		Amount:         t.Amount,
		Type:           t.Type,
		Status:         t.Status,
		Date:           t.Date,
		DateReplicated: cloneTime(t.DateReplicated),
		IsReplicated:   t.IsReplicated,
		IsCreditCard:   t.IsCreditCard,
		Category:       t.Category,
		Order:          t.Order,
	}
}

// WithID materializes a draft under the given identity.
func (d Draft) WithID(id string) Transaction {
	return Transaction{
		ID:             id,
		Title:          d.Title,
		Description:    d.Description,
		Amount:         d.Amount,
		Type:           d.Type,
		Status:         d.Status,
		Date:           d.Date,
		DateReplicated: cloneTime(d.DateReplicated),
		IsReplicated:   d.IsReplicated,
		IsCreditCard:   d.IsCreditCard,
		Category:       NormalizeCategory(d.Category),
		Order:          d.Order,
	}
}

// Apply returns a copy of t with every non-nil patch field set.
func (t Transaction) Apply(p Patch) Transaction {
	out := t
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.DateReplicated != nil {
		out.DateReplicated = cloneTime(p.DateReplicated)
	}
	if p.IsReplicated != nil {
		out.IsReplicated = *p.IsReplicated
	}
	if p.IsCreditCard != nil {
		out.IsCreditCard = *p.IsCreditCard
	}
	if p.Category != nil {
		out.Category = NormalizeCategory(*p.Category)
	}
	if p.Order != nil {
		out.Order = *p.Order
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// CountsAgainstBalance reports whether t reduces the month's available balance.
func (t Transaction) CountsAgainstBalance() bool {
	return t.Type == Expense && t.Status == Paid && !t.IsCreditCard
}

func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return FallbackCategory
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
