package treasury

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
)

type TreasurySuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func (s *TreasurySuite) SetupTest() {
	s.svc = NewService(NewInMemoryStore())
	s.ctx = context.Background()
}

func TestTreasurySuite(t *testing.T) {
	suite.Run(t, new(TreasurySuite))
}

func (s *TreasurySuite) TestTransferMovesValue() {
	alice := domain.AccountID("alice")
	pool := domain.AccountID("pool")
	s.Require().NoError(s.svc.Deposit(s.ctx, alice, 1000))

	s.Require().NoError(s.svc.Transfer(s.ctx, alice, pool, 400))

	from, err := s.svc.Balance(s.ctx, alice)
	s.Require().NoError(err)
	to, err := s.svc.Balance(s.ctx, pool)
	s.Require().NoError(err)
	s.Equal(uint64(600), from)
	s.Equal(uint64(400), to)
}

func (s *TreasurySuite) TestTransferFailsWithoutCover() {
	alice := domain.AccountID("alice")
	s.Require().NoError(s.svc.Deposit(s.ctx, alice, 100))

	err := s.svc.Transfer(s.ctx, alice, domain.AccountID("pool"), 101)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// Failed attempt leaves both sides untouched.
	balance, err := s.svc.Balance(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(100), balance)
}

func (s *TreasurySuite) TestTransferFromUnknownAccountFails() {
	err := s.svc.Transfer(s.ctx, domain.AccountID("ghost"), domain.AccountID("pool"), 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
}

func (s *TreasurySuite) TestDepositOverflowRejected() {
	alice := domain.AccountID("alice")
	s.Require().NoError(s.svc.Deposit(s.ctx, alice, math.MaxUint64))

	err := s.svc.Deposit(s.ctx, alice, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeOverflow))
}

func (s *TreasurySuite) TestZeroAmountTransfer() {
	// A zero transfer is a no-op but still a successful attempt.
	s.Require().NoError(s.svc.Transfer(s.ctx, domain.AccountID("alice"), domain.AccountID("pool"), 0))
}
