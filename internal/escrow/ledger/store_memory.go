package ledger

import (
	"context"
	"sync"

	"crowdvault/internal/escrow/models"
	"crowdvault/pkg/domain"
	"crowdvault/pkg/platform/sentinel"
)

// InMemoryStore holds investments as two views of one logical table: an
// identity-indexed map for O(1) membership and a separate insertion-order
// slice for stable enumeration. Both are updated under the same lock so an
// identity never appears in one without the other.
type InMemoryStore struct {
	mu          sync.RWMutex
	investments map[domain.AccountID]*models.Investment
	order       []domain.AccountID
}

// NewInMemoryStore constructs an empty ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{investments: make(map[domain.AccountID]*models.Investment)}
}

func (s *InMemoryStore) Record(_ context.Context, inv *models.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.investments[inv.Account]; exists {
		return sentinel.ErrConflict
	}

	stored := *inv
	s.investments[inv.Account] = &stored
	s.order = append(s.order, inv.Account)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, account domain.AccountID) (*models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *inv
	return &found, nil
}

func (s *InMemoryStore) Remove(_ context.Context, account domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[account]; !ok {
		return sentinel.ErrNotFound
	}

	delete(s.investments, account)
	for i, id := range s.order {
		if id == account {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Investment, 0, len(s.order))
	for _, id := range s.order {
		inv := *s.investments[id]
		out = append(out, &inv)
	}
	return out, nil
}
