package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"finanlito/internal/amqp"
	"finanlito/internal/core"
	"finanlito/internal/ports"
)

// Ensure interface conformance
var _ ports.TransactionService = (*TransactionService)(nil)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, msg *amqp.TransactionEvent) error
}

// TransactionService writes through a backend and publishes a change event
// after every successful write. Publishing never fails the write.
type TransactionService struct {
	backend   ports.TransactionService
	publisher EventPublisher
}

func NewTransactionService(backend ports.TransactionService, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		backend:   backend,
		publisher: publisher,
	}
}

func (s *TransactionService) List(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	return s.backend.List(ctx, year, month)
}

func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, err := s.backend.Create(ctx, d)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventCreated, t))
	return t, nil
}

func (s *TransactionService) Update(ctx context.Context, id string, p core.Patch) error {
	if err := s.backend.Update(ctx, id, p); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewPatchEvent(id, p))
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewDeletedEvent(id))
	return nil
}

func (s *TransactionService) UpdateOrder(ctx context.Context, items []core.OrderItem) error {
	if err := s.backend.UpdateOrder(ctx, items); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewReorderedEvent(len(items)))
	return nil
}

// Categories forwards to the backend when it lists categories.
func (s *TransactionService) Categories(ctx context.Context) ([]string, error) {
	if cl, ok := s.backend.(ports.CategoryLister); ok {
		return cl.Categories(ctx)
	}
	return core.DefaultCategories, nil
}

func (s *TransactionService) publish(ctx context.Context, msg *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", msg.Event,
			"transaction_id", msg.TransactionID,
			"error", err)
		// Don't fail the request - the write is already stored
	}
}

// Close closes the backend and the publisher when they hold resources.
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("backend: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
