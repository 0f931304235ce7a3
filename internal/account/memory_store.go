package account

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	byID     map[string]Account
	byNumber map[string]string
}

// NewMemoryStore constructs a concurrency-safe in-memory store used in
// development mode and unit tests.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:     make(map[string]Account),
		byNumber: make(map[string]string),
	}
}

func (s *memoryStore) Create(_ context.Context, acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNumber[acct.AccountNumber]; exists {
		return ErrDuplicateNumber
	}
	s.byID[acct.ID] = acct
	s.byNumber[acct.AccountNumber] = acct.ID
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (s *memoryStore) GetByNumber(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) SaveWithVersion(_ context.Context, acct Account, expectedVersion int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[acct.ID]
	if !ok {
		return Account{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return Account{}, ErrVersionConflict
	}
	acct.Version = expectedVersion + 1
	acct.UpdatedAt = time.Now().UTC()
	s.byID[acct.ID] = acct
	return acct, nil
}
