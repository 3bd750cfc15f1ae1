package http

import (
	"time"

	"finanlito/internal/core"
	"finanlito/internal/kanban"
)

type transactionJSON struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Amount         string  `json:"amount"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Date           string  `json:"date"`
	DateReplicated *string `json:"date_replicated,omitempty"`
	IsReplicated   bool    `json:"is_replicated"`
	CreditCard     bool    `json:"credit_card"`
	Category       string  `json:"category"`
	Order          int     `json:"order"`
}

func toJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Amount:       t.Amount.String(),
		Type:         string(t.Type),
		Status:       string(t.Status),
		Date:         t.Date.Format(time.DateOnly),
		IsReplicated: t.IsReplicated,
		CreditCard:   t.IsCreditCard,
		Category:     t.Category,
		Order:        t.Order,
	}
	if t.DateReplicated != nil {
		s := t.DateReplicated.Format(time.DateOnly)
		out.DateReplicated = &s
	}
	return out
}

func toJSONList(list []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(list))
	for i, t := range list {
		out[i] = toJSON(t)
	}
	return out
}

type balanceJSON struct {
	OK        bool   `json:"ok"`
	Available string `json:"available"`
	Deficit   string `json:"deficit"`
}

func toBalanceJSON(b kanban.BalanceCheck) balanceJSON {
	return balanceJSON{OK: b.OK, Available: b.Available.String(), Deficit: b.Deficit.String()}
}

type categoryAmountJSON struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type summaryJSON struct {
	Income     string               `json:"income"`
	Expense    string               `json:"expense"`
	Paid       string               `json:"paid"`
	Pending    string               `json:"pending"`
	Overdue    string               `json:"overdue"`
	CreditCard string               `json:"credit_card"`
	Available  string               `json:"available"`
	ByCategory []categoryAmountJSON `json:"by_category"`
}

func toSummaryJSON(s core.MonthSummary) summaryJSON {
	out := summaryJSON{
		Income:     s.Income.String(),
		Expense:    s.Expense.String(),
		Paid:       s.Paid.String(),
		Pending:    s.Pending.String(),
		Overdue:    s.Overdue.String(),
		CreditCard: s.CreditCard.String(),
		Available:  s.Available.String(),
		ByCategory: make([]categoryAmountJSON, len(s.ByCategory)),
	}
	for i, c := range s.ByCategory {
		out.ByCategory[i] = categoryAmountJSON{Name: c.Name, Amount: c.Amount.String()}
	}
	return out
}

type boardResponse struct {
	Year    int               `json:"year"`
	Month   int               `json:"month"`
	Pending []transactionJSON `json:"pending"`
	Overdue []transactionJSON `json:"overdue"`
	Paid    []transactionJSON `json:"paid"`
	Summary summaryJSON       `json:"summary"`
}

type createRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	Category     string `json:"category"`
	CreditCard   bool   `json:"credit_card"`
	Installments int    `json:"installments"`
	AllowDeficit bool   `json:"allow_deficit"`
}

func (req createRequest) draft() (core.Draft, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return core.Draft{}, badRequest("invalid amount %q", req.Amount)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Draft{}, err
	}
	status := core.Status(req.Status)
	if status == "" {
		status = core.Pending
	}
	return core.Draft{
		Title:        sanitizeInput(req.Title),
		Description:  sanitizeInput(req.Description),
		Amount:       amount,
		Type:         core.TransactionType(req.Type),
		Status:       status,
		Date:         date,
		Category:     sanitizeInput(req.Category),
		IsCreditCard: req.CreditCard,
		Order:        core.NoOrder,
	}, nil
}

type updateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Amount       *string `json:"amount"`
	Type         *string `json:"type"`
	Status       *string `json:"status"`
	Date         *string `json:"date"`
	Category     *string `json:"category"`
	CreditCard   *bool   `json:"credit_card"`
	AllowDeficit bool    `json:"allow_deficit"`
}

func (req updateRequest) patch() (core.Patch, error) {
	var p core.Patch
	if req.Title != nil {
		v := sanitizeInput(*req.Title)
		p.Title = &v
	}
	if req.Description != nil {
		v := sanitizeInput(*req.Description)
		p.Description = &v
	}
	if req.Amount != nil {
		m, err := core.ParseMoney(*req.Amount)
		if err != nil {
			return core.Patch{}, badRequest("invalid amount %q", *req.Amount)
		}
		p.Amount = &m
	}
	if req.Type != nil {
		v := core.TransactionType(*req.Type)
		p.Type = &v
	}
	if req.Status != nil {
		v := core.Status(*req.Status)
		p.Status = &v
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return core.Patch{}, err
		}
		p.Date = &d
	}
	if req.Category != nil {
		v := sanitizeInput(*req.Category)
		p.Category = &v
	}
	p.IsCreditCard = req.CreditCard
	return p, nil
}

type moveRequest struct {
	Status       string `json:"status"`
	Index        int    `json:"index"`
	AllowDeficit bool   `json:"allow_deficit"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type replicateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type renameCategoryRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type mutationResponse struct {
	Applied     bool              `json:"applied"`
	Balance     *balanceJSON      `json:"balance,omitempty"`
	Transaction *transactionJSON  `json:"transaction,omitempty"`
	Created     []transactionJSON `json:"created,omitempty"`
}

type deleteResponse struct {
	Deleted   []string          `json:"deleted"`
	Reindexed []transactionJSON `json:"reindexed"`
}

type cloneResponse struct {
	Created []transactionJSON `json:"created"`
	Moved   []string          `json:"moved"`
}

type countResponse struct {
	Updated int `json:"updated"`
}
