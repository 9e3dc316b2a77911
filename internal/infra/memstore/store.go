// Package memstore is an in-process receipt store and operator directory,
// used in development, mock mode and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
)

// Store keeps receipts in memory. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	receipts  map[string]domain.Receipt
	operators map[string]domain.Operator
	prefix    string
	seq       int64
}

// New creates an empty store whose sequence numbers use prefix and whose
// operator directory is seeded from login -> display name.
func New(prefix string, operators map[string]string) *Store {
	s := &Store{
		receipts:  make(map[string]domain.Receipt),
		operators: make(map[string]domain.Operator, len(operators)),
		prefix:    prefix,
	}
	for login, name := range operators {
		s.operators[login] = domain.Operator{Login: login, Name: name, Active: true}
	}
	return s
}

func (s *Store) CreateReceipt(_ context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[r.ID]; exists {
		return nil, &domain.ErrValidation{Field: "id", Message: "duplicate receipt id " + r.ID}
	}
	s.receipts[r.ID] = *r
	out := *r
	return &out, nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receipts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
	}
	return &r, nil
}

// ListReceipts returns matching receipts, newest first.
func (s *Store) ListReceipts(_ context.Context, f domain.ReceiptFilter) ([]domain.Receipt, error) {
	s.mu.RLock()
	out := make([]domain.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		r := r
		if f.Matches(&r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return domain.NewerFirst(&out[i], &out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateReceipt(_ context.Context, r *domain.Receipt) (*domain.Receipt, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.receipts[r.ID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "receipt", ID: r.ID}
	}
	s.receipts[r.ID] = *r
	out := *r
	return &out, nil
}

func (s *Store) SetCancelled(_ context.Context, id string, cancelled bool, at time.Time) (*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "receipt", ID: id}
	}
	r.Cancelled = cancelled
	r.UpdatedAt = at
	s.receipts[id] = r
	return &r, nil
}

func (s *Store) NextSequence(_ context.Context) (string, error) {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%s-%06d", s.prefix, n), nil
}

func (s *Store) FindOperator(_ context.Context, login string) (*domain.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operators[login]
	if !ok || !op.Active {
		return nil, &domain.ErrNotFound{Resource: "operator", ID: login}
	}
	return &op, nil
}

func (s *Store) Ping(context.Context) error { return nil }
