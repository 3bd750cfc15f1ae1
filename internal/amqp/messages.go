package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finanlito/internal/core"
)

// Event names carried by TransactionEvent
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
	EventReordered = "reordered"
)

// TransactionEvent is a change notification for one record, or for a whole
// order vector when Event is EventReordered.
type TransactionEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Type          string    `json:"type,omitempty"`
	Status        string    `json:"status,omitempty"`
	Date          string    `json:"date,omitempty"`
	Category      string    `json:"category,omitempty"`
	CreditCard    bool      `json:"credit_card,omitempty"`
	Changes       []string  `json:"changes,omitempty"`
	Count         int       `json:"count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent snapshots t for event.
func NewTransactionEvent(event string, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Event:         event,
		TransactionID: t.ID,
		Title:         t.Title,
		Amount:        t.Amount.String(),
		Type:          string(t.Type),
		Status:        string(t.Status),
		Date:          t.Date.Format(time.DateOnly),
		Category:      t.Category,
		CreditCard:    t.IsCreditCard,
		Timestamp:     time.Now(),
	}
}

// NewPatchEvent describes an update by the fields it set.
func NewPatchEvent(id string, p core.Patch) *TransactionEvent {
	msg := &TransactionEvent{
		Event:         EventUpdated,
		TransactionID: id,
		Timestamp:     time.Now(),
	}
	if p.Title != nil {
		msg.Title = *p.Title
		msg.Changes = append(msg.Changes, "title")
	}
	if p.Description != nil {
		msg.Changes = append(msg.Changes, "description")
	}
	if p.Amount != nil {
		msg.Amount = p.Amount.String()
		msg.Changes = append(msg.Changes, "amount")
	}
	if p.Type != nil {
		msg.Type = string(*p.Type)
		msg.Changes = append(msg.Changes, "type")
	}
	if p.Status != nil {
		msg.Status = string(*p.Status)
		msg.Changes = append(msg.Changes, "status")
	}
	if p.Date != nil {
		msg.Date = p.Date.Format(time.DateOnly)
		msg.Changes = append(msg.Changes, "date")
	}
	if p.DateReplicated != nil || p.IsReplicated != nil {
		msg.Changes = append(msg.Changes, "replication")
	}
	if p.IsCreditCard != nil {
		msg.CreditCard = *p.IsCreditCard
		msg.Changes = append(msg.Changes, "credit_card")
	}
	if p.Category != nil {
		msg.Category = *p.Category
		msg.Changes = append(msg.Changes, "category")
	}
	if p.Order != nil {
		msg.Changes = append(msg.Changes, "order")
	}
	return msg
}

func NewDeletedEvent(id string) *TransactionEvent {
	return &TransactionEvent{Event: EventDeleted, TransactionID: id, Timestamp: time.Now()}
}

func NewReorderedEvent(count int) *TransactionEvent {
	return &TransactionEvent{Event: EventReordered, Count: count, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes a message and rejects unknown events.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventCreated, EventUpdated, EventDeleted, EventReordered:
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	return &msg, nil
}
