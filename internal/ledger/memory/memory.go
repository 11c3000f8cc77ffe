// Package memory is an in-process ledger.Store. Data lives only as long as
// the process.
package memory

import (
	"context"
	"sync"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

type Store struct {
	mu     sync.Mutex
	items  []core.Transaction
	nextID int64
	now    func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1, now: time.Now}
}

// NewWithClock is New with a fixed source for CreatedAt.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Append validates and stores the transaction.
func (s *Store) Append(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	t.CreatedAt = s.now().UTC()
	s.nextID++
	s.items = append(s.items, t)
	return t, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

// List returns a copy of the stored transactions, newest date first.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.items...)
	s.mu.Unlock()
	ledger.SortNewestFirst(out)
	return out, nil
}

func (s *Store) Summary(ctx context.Context) (core.Summary, error) {
	txs, err := s.List(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(txs), nil
}

// Reset drops every transaction. IDs keep increasing across resets.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}
