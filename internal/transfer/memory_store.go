package transfer

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	byID     map[string]Transaction
	byRef    map[string]string
	byExtRef map[string]string
}

// NewMemoryStore constructs a concurrency-safe in-memory store used in
// development mode and unit tests.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:     make(map[string]Transaction),
		byRef:    make(map[string]string),
		byExtRef: make(map[string]string),
	}
}

func (s *memoryStore) Create(_ context.Context, txn Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.ExternalReference != "" {
		if _, exists := s.byExtRef[txn.ExternalReference]; exists {
			return ErrDuplicateReference
		}
	}
	s.byID[txn.ID] = txn
	s.byRef[txn.ReferenceNumber] = txn.ID
	if txn.ExternalReference != "" {
		s.byExtRef[txn.ExternalReference] = txn.ID
	}
	return nil
}

func (s *memoryStore) Update(_ context.Context, txn Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[txn.ID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	// Terminal transactions are immutable, even field edits under the same
	// status.
	if Terminal(current.Status) {
		return Transaction{}, ErrInvalidTransition
	}
	if current.Status != txn.Status && !CanTransition(current.Status, txn.Status) {
		return Transaction{}, ErrInvalidTransition
	}
	s.byID[txn.ID] = txn
	return txn, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (s *memoryStore) GetByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) GetByExternalReference(_ context.Context, externalRef string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExtRef[externalRef]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) ListByAccount(_ context.Context, accountID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, txn := range s.byID {
		if txn.SourceAccountID == accountID || txn.TargetAccountID == accountID {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.After(out[j].InitiatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ListByDateRange(_ context.Context, from, to time.Time, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, txn := range s.byID {
		if txn.InitiatedAt.Before(from) || !txn.InitiatedAt.Before(to) {
			continue
		}
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.After(out[j].InitiatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ListPendingReview(_ context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, txn := range s.byID {
		if txn.Status == StatusPendingReview {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.Before(out[j].InitiatedAt) })
	return out, nil
}

func (s *memoryStore) CountByStatus(_ context.Context, status Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, txn := range s.byID {
		if txn.Status == status {
			n++
		}
	}
	return n, nil
}
