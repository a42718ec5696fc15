package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crowdvault/internal/escrow/models"
	"crowdvault/pkg/domain"
	"crowdvault/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) investment(account string, amount uint64) *models.Investment {
	return &models.Investment{
		Account:    domain.AccountID(account),
		Name:       account,
		Amount:     amount,
		RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *InMemoryStoreSuite) TestRecordAndFind() {
	s.Run("stores and returns the investment", func() {
		inv := s.investment("alice", 500)
		s.Require().NoError(s.store.Record(s.ctx, inv))

		found, err := s.store.Find(s.ctx, domain.AccountID("alice"))
		s.Require().NoError(err)
		s.Equal(inv, found)
	})

	s.Run("rejects a second active investment for the same account", func() {
		err := s.store.Record(s.ctx, s.investment("alice", 100))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for an unknown account", func() {
		_, err := s.store.Find(s.ctx, domain.AccountID("nobody"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListPreservesInsertionOrder() {
	s.Require().NoError(s.store.Record(s.ctx, s.investment("alice", 100)))
	s.Require().NoError(s.store.Record(s.ctx, s.investment("bob", 200)))
	s.Require().NoError(s.store.Record(s.ctx, s.investment("carol", 300)))

	invs, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(invs, 3)
	s.Equal(domain.AccountID("alice"), invs[0].Account)
	s.Equal(domain.AccountID("bob"), invs[1].Account)
	s.Equal(domain.AccountID("carol"), invs[2].Account)
}

func (s *InMemoryStoreSuite) TestRemove() {
	s.Require().NoError(s.store.Record(s.ctx, s.investment("alice", 100)))
	s.Require().NoError(s.store.Record(s.ctx, s.investment("bob", 200)))

	s.Run("deletes record and enumeration entry together", func() {
		s.Require().NoError(s.store.Remove(s.ctx, domain.AccountID("alice")))

		_, err := s.store.Find(s.ctx, domain.AccountID("alice"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		invs, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(invs, 1)
		s.Equal(domain.AccountID("bob"), invs[0].Account)
	})

	s.Run("returns ErrNotFound for an absent account", func() {
		s.Require().ErrorIs(s.store.Remove(s.ctx, domain.AccountID("alice")), sentinel.ErrNotFound)
	})

	s.Run("re-subscribing after removal appends at the end", func() {
		s.Require().NoError(s.store.Record(s.ctx, s.investment("alice", 150)))

		invs, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(invs, 2)
		s.Equal(domain.AccountID("bob"), invs[0].Account)
		s.Equal(domain.AccountID("alice"), invs[1].Account)
	})
}

func (s *InMemoryStoreSuite) TestFindReturnsCopy() {
	s.Require().NoError(s.store.Record(s.ctx, s.investment("alice", 100)))

	found, err := s.store.Find(s.ctx, domain.AccountID("alice"))
	s.Require().NoError(err)
	found.Amount = 999

	again, err := s.store.Find(s.ctx, domain.AccountID("alice"))
	s.Require().NoError(err)
	s.Equal(uint64(100), again.Amount)
}
