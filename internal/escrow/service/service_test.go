package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"crowdvault/internal/escrow/guard"
	"crowdvault/internal/escrow/ledger"
	"crowdvault/internal/escrow/models"
	"crowdvault/internal/notice"
	"crowdvault/internal/treasury"
	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
)

const (
	custodian = domain.AccountID("custodian")
	pool      = domain.AccountID("escrow-pool")
	alice     = domain.AccountID("alice")
	bob       = domain.AccountID("bob")
	carol     = domain.AccountID("carol")
)

// captureNotifier records emitted events for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []notice.Event
}

func (c *captureNotifier) Emit(event notice.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureNotifier) kinds() []notice.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notice.Kind, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

func (c *captureNotifier) last(kind notice.Kind) (notice.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Kind == kind {
			return c.events[i], true
		}
	}
	return notice.Event{}, false
}

// flakyTreasury fails the n-th transfer attempt (1-based) and delegates the
// rest, to exercise the documented partial-failure exposure.
type flakyTreasury struct {
	inner  Treasury
	failOn int
	calls  int
}

func (f *flakyTreasury) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	f.calls++
	if f.calls == f.failOn {
		return dErrors.New(dErrors.CodeTransferFailed, "transfer rejected by counterparty")
	}
	return f.inner.Transfer(ctx, from, to, amount)
}

type EscrowServiceSuite struct {
	suite.Suite
	ctx      context.Context
	treasury *treasury.Service
	notices  *captureNotifier
}

func TestEscrowServiceSuite(t *testing.T) {
	suite.Run(t, new(EscrowServiceSuite))
}

func (s *EscrowServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.treasury = treasury.NewService(treasury.NewInMemoryStore())
	s.notices = &captureNotifier{}
}

// newService builds a service over fresh stores with the worked-example
// parameters: target=1000, min=100, max=500, percentage=10.
func (s *EscrowServiceSuite) newService(transferor Treasury) *Service {
	params, err := models.NewParams(custodian, 1000, 100, 500, 10, time.Hour, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	if transferor == nil {
		transferor = s.treasury
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(params, pool, ledger.NewInMemoryStore(), transferor, guard.NewCustodianGuard(custodian), s.notices, nil, logger)
}

func (s *EscrowServiceSuite) fund(account domain.AccountID, amount uint64) {
	s.Require().NoError(s.treasury.Deposit(s.ctx, account, amount))
}

func (s *EscrowServiceSuite) balance(account domain.AccountID) uint64 {
	balance, err := s.treasury.Balance(s.ctx, account)
	s.Require().NoError(err)
	return balance
}

// fill subscribes alice and bob at 500 each, meeting the target exactly.
func (s *EscrowServiceSuite) fill(svc *Service) {
	s.fund(alice, 500)
	s.fund(bob, 500)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 500))
	s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 500))
}

func (s *EscrowServiceSuite) TestSubscribeAccounting() {
	svc := s.newService(nil)
	s.fund(alice, 1000)
	s.fund(bob, 1000)

	s.Run("aggregate tracks the sum of active investments", func() {
		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(0), agg)

		s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 300))
		agg, err = svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(300), agg)

		s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 200))
		agg, err = svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(500), agg)

		// Conservation: the pool holds exactly the aggregate.
		s.Equal(uint64(500), s.balance(pool))
	})

	s.Run("a participant cannot hold two active investments", func() {
		err := svc.Subscribe(s.ctx, alice, "Alice", 100)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("amount bounds are enforced", func() {
		err := svc.Subscribe(s.ctx, carol, "Carol", 99)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		err = svc.Subscribe(s.ctx, carol, "Carol", 501)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("emits new-contribution per success", func() {
		event, ok := s.notices.last(notice.KindNewContribution)
		s.Require().True(ok)
		s.Equal(bob, event.Account)
		s.Equal(uint64(200), event.Amount)
	})
}

func (s *EscrowServiceSuite) TestSubscribeTargetBoundary() {
	svc := s.newService(nil)
	s.fund(alice, 500)
	s.fund(bob, 500)
	s.fund(carol, 500)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 500))
	s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 400))

	s.Run("contribution exceeding the target raises too-much then rejects", func() {
		err := svc.Subscribe(s.ctx, carol, "Carol", 200)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		event, ok := s.notices.last(notice.KindTooMuchAttempted)
		s.Require().True(ok)
		s.Equal(uint64(100), event.Needed)
		s.Equal(uint64(200), event.Provided)

		// Rejection leaves ledger and pool unchanged.
		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(900), agg)
		s.Equal(uint64(900), s.balance(pool))
	})

	s.Run("exact fill succeeds and raises target-reached", func() {
		s.Require().NoError(svc.Subscribe(s.ctx, carol, "Carol", 100))

		event, ok := s.notices.last(notice.KindTargetReached)
		s.Require().True(ok)
		s.Equal(uint64(1000), event.Amount)

		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1000), agg)
	})

	s.Run("aggregate never exceeds the target while subscribing", func() {
		err := svc.Withdraw(s.ctx, carol)
		s.Require().NoError(err)
		err = svc.Subscribe(s.ctx, carol, "Carol", 200)
		s.Require().Error(err)
	})
}

func (s *EscrowServiceSuite) TestWithdraw() {
	svc := s.newService(nil)
	s.fund(alice, 500)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 500))

	s.Run("refunds the full amount and deletes the record", func() {
		s.Require().NoError(svc.Withdraw(s.ctx, alice))
		s.Equal(uint64(500), s.balance(alice))
		s.Equal(uint64(0), s.balance(pool))

		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(0), agg)

		event, ok := s.notices.last(notice.KindWithdrawal)
		s.Require().True(ok)
		s.Equal(uint64(500), event.Amount)
	})

	s.Run("without an active investment fails and leaves the ledger unchanged", func() {
		err := svc.Withdraw(s.ctx, alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EscrowServiceSuite) TestWithdrawKeepsRecordWhenTransferFails() {
	flaky := &flakyTreasury{inner: s.treasury, failOn: 2}
	svc := s.newService(flaky)
	s.fund(alice, 500)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 500))

	err := svc.Withdraw(s.ctx, alice)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// The record is only removed after a confirmed transfer.
	agg, err := svc.Aggregate(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(500), agg)
}

func (s *EscrowServiceSuite) TestAdvanceToDividend() {
	svc := s.newService(nil)

	s.Run("fails for non-custodian", func() {
		err := svc.AdvanceToDividend(s.ctx, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("fails unless aggregate equals target exactly", func() {
		s.fund(alice, 500)
		s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 500))

		err := svc.AdvanceToDividend(s.ctx, custodian)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.CycleSubscribing, svc.State())
	})

	s.Run("transfers custody and advances exactly once", func() {
		s.fund(bob, 500)
		s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 500))

		s.Require().NoError(svc.AdvanceToDividend(s.ctx, custodian))
		s.Equal(models.CycleDividend, svc.State())
		s.Equal(uint64(1000), s.balance(custodian))
		s.Equal(uint64(0), s.balance(pool))

		_, ok := s.notices.last(notice.KindAdvancedToDividend)
		s.True(ok)

		// The state only moves forward.
		err := svc.AdvanceToDividend(s.ctx, custodian)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("subscriptions are rejected after advancement", func() {
		s.fund(carol, 500)
		err := svc.Subscribe(s.ctx, carol, "Carol", 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EscrowServiceSuite) TestInterestDue() {
	svc := s.newService(nil)
	s.fill(svc)
	s.Require().NoError(svc.AdvanceToDividend(s.ctx, custodian))

	s.Run("equals aggregate times the raw percentage", func() {
		// percentage=10 over aggregate=1000: the factor is deliberately not
		// divided by 100.
		due, err := svc.InterestDue(s.ctx, custodian)
		s.Require().NoError(err)
		s.Equal(uint64(10000), due)
	})

	s.Run("is deterministic over the same ledger", func() {
		again, err := svc.InterestDue(s.ctx, custodian)
		s.Require().NoError(err)
		s.Equal(uint64(10000), again)
	})

	s.Run("is custodian-only", func() {
		_, err := svc.InterestDue(s.ctx, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("is unavailable outside the dividend phase", func() {
		fresh := s.newService(nil)
		_, err := fresh.InterestDue(s.ctx, custodian)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EscrowServiceSuite) TestPayInterests() {
	svc := s.newService(nil)
	s.fill(svc)
	s.Require().NoError(svc.AdvanceToDividend(s.ctx, custodian))
	// Custodian holds 1000 from custody; top up to cover the 10000 due.
	s.fund(custodian, 9000)

	s.Run("rejects a supplied amount that is not exactly the due", func() {
		err := svc.PayInterests(s.ctx, custodian, 9999)
		s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))

		err = svc.PayInterests(s.ctx, custodian, 10001)
		s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))
	})

	s.Run("pays every participant amount times percentage in one pass", func() {
		s.Require().NoError(svc.PayInterests(s.ctx, custodian, 10000))

		s.Equal(uint64(5000), s.balance(alice))
		s.Equal(uint64(5000), s.balance(bob))
		s.Equal(uint64(0), s.balance(custodian))
		s.Equal(uint64(0), s.balance(pool))
	})

	s.Run("ledger is unchanged: interest is not principal", func() {
		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1000), agg)
	})

	s.Run("is repeatable within the dividend phase", func() {
		s.fund(custodian, 10000)
		s.Require().NoError(svc.PayInterests(s.ctx, custodian, 10000))
		s.Equal(uint64(10000), s.balance(alice))
	})
}

func (s *EscrowServiceSuite) TestPayInterestsPartialFailure() {
	// Attempt sequence within the call: collect supplied (1), pay alice (2),
	// pay bob (3). Fail the payment to bob.
	flaky := &flakyTreasury{inner: s.treasury}
	svc := s.newService(flaky)
	s.fill(svc)
	s.Require().NoError(svc.AdvanceToDividend(s.ctx, custodian))
	s.fund(custodian, 9000)

	flaky.calls = 0
	flaky.failOn = 3

	err := svc.PayInterests(s.ctx, custodian, 10000)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// Completed transfers in the same call stay applied; the remainder of
	// the supplied pool is still in escrow.
	s.Equal(uint64(5000), s.balance(alice))
	s.Equal(uint64(0), s.balance(bob))
	s.Equal(uint64(5000), s.balance(pool))

	// The ledger is untouched either way.
	agg, err := svc.Aggregate(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1000), agg)
}

func (s *EscrowServiceSuite) TestCancelFromSubscribing() {
	svc := s.newService(nil)
	s.fund(alice, 100)
	s.fund(bob, 200)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 100))
	s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 200))

	s.Run("is custodian-only", func() {
		err := svc.Cancel(s.ctx, alice, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("requires no extra payment", func() {
		err := svc.Cancel(s.ctx, custodian, 42)
		s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))
	})

	s.Run("refunds exactly the committed amounts and empties the ledger", func() {
		s.Require().NoError(svc.Cancel(s.ctx, custodian, 0))

		s.Equal(uint64(100), s.balance(alice))
		s.Equal(uint64(200), s.balance(bob))
		s.Equal(uint64(0), s.balance(pool))
		s.Equal(models.CycleClosed, svc.State())

		agg, err := svc.Aggregate(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(0), agg)

		refunded, ok := s.notices.last(notice.KindAllRefunded)
		s.Require().True(ok)
		s.Equal(uint64(300), refunded.Amount)
		_, ok = s.notices.last(notice.KindOfferClosed)
		s.True(ok)
	})

	s.Run("closed is terminal", func() {
		err := svc.Cancel(s.ctx, custodian, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		s.fund(carol, 500)
		err = svc.Subscribe(s.ctx, carol, "Carol", 100)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EscrowServiceSuite) TestCancelFromDividend() {
	svc := s.newService(nil)
	s.fill(svc)
	s.Require().NoError(svc.AdvanceToDividend(s.ctx, custodian))

	s.Run("requires the custodian to resupply exactly the aggregate", func() {
		err := svc.Cancel(s.ctx, custodian, 999)
		s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))

		err = svc.Cancel(s.ctx, custodian, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeAmountMismatch))
	})

	s.Run("refunds principal from the resupplied pool", func() {
		s.Require().NoError(svc.Cancel(s.ctx, custodian, 1000))

		s.Equal(uint64(500), s.balance(alice))
		s.Equal(uint64(500), s.balance(bob))
		s.Equal(uint64(0), s.balance(custodian))
		s.Equal(uint64(0), s.balance(pool))
		s.Equal(models.CycleClosed, svc.State())
	})
}

func (s *EscrowServiceSuite) TestRefundPartialFailureExposure() {
	// Cancel from subscribing with three participants; fail bob's refund.
	// Attempt sequence within cancel: refund alice (1), refund bob (2).
	flaky := &flakyTreasury{inner: s.treasury}
	svc := s.newService(flaky)
	s.fund(alice, 100)
	s.fund(bob, 200)
	s.fund(carol, 300)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 100))
	s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 200))
	s.Require().NoError(svc.Subscribe(s.ctx, carol, "Carol", 300))

	flaky.calls = 0
	flaky.failOn = 2

	err := svc.Cancel(s.ctx, custodian, 0)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// Alice stays refunded and cleared; bob and carol remain in the ledger;
	// the offer is still open and no completion notice fired.
	s.Equal(uint64(100), s.balance(alice))
	s.Equal(uint64(0), s.balance(bob))
	s.Equal(models.CycleSubscribing, svc.State())

	agg, err := svc.Aggregate(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(500), agg)

	_, ok := s.notices.last(notice.KindAllRefunded)
	s.False(ok)
}

func (s *EscrowServiceSuite) TestRefundOrderFollowsLedger() {
	svc := s.newService(nil)
	s.fund(alice, 100)
	s.fund(bob, 200)
	s.Require().NoError(svc.Subscribe(s.ctx, alice, "Alice", 100))
	s.Require().NoError(svc.Subscribe(s.ctx, bob, "Bob", 200))

	recorder := &orderRecorder{inner: s.treasury}
	svc.treasury = recorder

	s.Require().NoError(svc.Cancel(s.ctx, custodian, 0))
	s.Equal([]domain.AccountID{alice, bob}, recorder.recipients)
}

type orderRecorder struct {
	inner      Treasury
	recipients []domain.AccountID
}

func (o *orderRecorder) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	o.recipients = append(o.recipients, to)
	return o.inner.Transfer(ctx, from, to, amount)
}
