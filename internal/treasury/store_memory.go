package treasury

import (
	"context"
	"sync"

	"crowdvault/pkg/domain"
	"crowdvault/pkg/platform/sentinel"
	"crowdvault/pkg/safemath"
)

// InMemoryStore keeps balances in a map guarded by one lock, so a transfer's
// debit and credit are observed together or not at all.
type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[domain.AccountID]uint64
}

// NewInMemoryStore constructs an empty balance table.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[domain.AccountID]uint64)}
}

func (s *InMemoryStore) Transfer(_ context.Context, from, to domain.AccountID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := s.balances[from]
	if source < amount {
		return sentinel.ErrInsufficientFunds
	}
	credited, err := safemath.Add(s.balances[to], amount)
	if err != nil {
		return err
	}

	s.balances[from] = source - amount
	s.balances[to] = credited
	return nil
}

func (s *InMemoryStore) Deposit(_ context.Context, account domain.AccountID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credited, err := safemath.Add(s.balances[account], amount)
	if err != nil {
		return err
	}
	s.balances[account] = credited
	return nil
}

func (s *InMemoryStore) Balance(_ context.Context, account domain.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}
