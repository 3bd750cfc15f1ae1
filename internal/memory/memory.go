// Package memory is an in-process TransactionService, partitioned by the
// caller's credential.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finanlito/internal/core"
	"finanlito/internal/ports"
)

// Ensure interface conformance
var (
	_ ports.TransactionService = (*Store)(nil)
	_ ports.CategoryLister     = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	cats    []string
	tenants map[string][]core.Transaction
}

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats), tenants: map[string][]core.Transaction{}}
}

func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	return New(cats)
}

// List returns the caller's records for a year (month 0) or a single month,
// in insertion order.
func (s *Store) List(ctx context.Context, year int, month int) ([]core.Transaction, error) {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.tenants[tok] {
		if t.Date.Year() != year {
			continue
		}
		if month != 0 && int(t.Date.Month()) != month {
			continue
		}
		out = append(out, copyTx(t))
	}
	return out, nil
}

// Create stores the draft under a fresh identifier.
func (s *Store) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t := d.WithID(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tok] = append(s.tenants[tok], t)
	return copyTx(t), nil
}

func (s *Store) Update(ctx context.Context, id string, p core.Patch) error {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.tenants[tok]
	for i := range items {
		if items[i].ID != id {
			continue
		}
		next := items[i].Apply(p)
		if err := next.Validate(); err != nil {
			return err
		}
		items[i] = next
		return nil
	}
	return fmt.Errorf("update %s: %w", id, ports.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.tenants[tok]
	for i := range items {
		if items[i].ID == id {
			s.tenants[tok] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, ports.ErrNotFound)
}

// UpdateOrder applies the order vector; unknown ids are ignored.
func (s *Store) UpdateOrder(ctx context.Context, order []core.OrderItem) error {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]int, len(order))
	for _, it := range order {
		byID[it.ID] = it.Order
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.tenants[tok]
	for i := range items {
		if o, ok := byID[items[i].ID]; ok {
			items[i].Order = o
		}
	}
	return nil
}

// Categories returns the seeded categories followed by any custom ones
// used in the caller's records.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	tok, err := ports.RequireToken(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]string(nil), s.cats...)
	for _, t := range s.tenants[tok] {
		all = append(all, t.Category)
	}
	return dedupe(all), nil
}

// Seed inserts records as-is for a tenant, keeping their ids and orders.
func (s *Store) Seed(token string, items ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range items {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		s.tenants[token] = append(s.tenants[token], copyTx(t))
	}
}

func copyTx(t core.Transaction) core.Transaction {
	if t.DateReplicated != nil {
		v := *t.DateReplicated
		t.DateReplicated = &v
	}
	return t
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
