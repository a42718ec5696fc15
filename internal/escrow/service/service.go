// Package service implements the escrow engine: the cycle state machine,
// aggregate-fund accounting, and the disbursement loops. All mutating
// operations run to completion under one mutex; an operation either commits
// fully or fails with prior state unchanged, except where the multi-party
// disbursement loops document partial-failure exposure.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"crowdvault/internal/escrow/ledger"
	"crowdvault/internal/escrow/metrics"
	"crowdvault/internal/escrow/models"
	"crowdvault/internal/notice"
	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
	"crowdvault/pkg/platform/sentinel"
	"crowdvault/pkg/safemath"
)

// Treasury is the value-transfer primitive. A failed attempt is a hard stop
// for the calling operation; already-completed attempts in the same call are
// not rolled back.
type Treasury interface {
	Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error
}

// Guard answers "is the caller the custodian", checked once per privileged
// operation.
type Guard interface {
	RequireCustodian(ctx context.Context, caller domain.AccountID) error
}

// Notifier raises one-way signals to external observers.
type Notifier interface {
	Emit(event notice.Event)
}

// Service owns the cycle value exclusively. Every other component reads it
// through State and never mutates it.
type Service struct {
	mu     sync.Mutex
	cycle  models.Cycle
	params models.Params
	// pool is the escrow's own treasury account; during the subscribing
	// phase it holds exactly the aggregate committed amount.
	pool domain.AccountID

	ledger   ledger.Store
	treasury Treasury
	guard    Guard
	notices  Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates the escrow service in the subscribing state.
func New(
	params models.Params,
	pool domain.AccountID,
	ledgerStore ledger.Store,
	treasury Treasury,
	guard Guard,
	notices Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		cycle:    models.CycleSubscribing,
		params:   params,
		pool:     pool,
		ledger:   ledgerStore,
		treasury: treasury,
		guard:    guard,
		notices:  notices,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("crowdvault/escrow"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetCycle(s.cycle.String(), models.CycleNames())
	return s
}

// State is the read-only cycle accessor.
func (s *Service) State() models.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Params returns the immutable offer parameters.
func (s *Service) Params() models.Params {
	return s.params
}

// Subscribe records a new investment for the caller.
func (s *Service) Subscribe(ctx context.Context, caller domain.AccountID, name string, amount uint64) error {
	ctx, span := s.tracer.Start(ctx, "escrow.subscribe")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	err := s.subscribe(ctx, caller, name, amount)
	s.mu.Unlock()

	s.observe("subscribe", start, err)
	return err
}

func (s *Service) subscribe(ctx context.Context, caller domain.AccountID, name string, amount uint64) error {
	if s.cycle != models.CycleSubscribing {
		return dErrors.New(dErrors.CodeInvalidState, "offer is not accepting subscriptions")
	}
	if amount < s.params.MinFund {
		return dErrors.New(dErrors.CodeValidation, "amount below the per-participant minimum")
	}
	if amount > s.params.MaxFund {
		return dErrors.New(dErrors.CodeValidation, "amount above the per-participant maximum")
	}

	if _, err := s.ledger.Find(ctx, caller); err == nil {
		return dErrors.New(dErrors.CodeConflict, "participant already holds an active investment; withdraw first")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check ledger membership")
	}

	aggregate, count, err := s.aggregate(ctx)
	if err != nil {
		return err
	}
	prospective, err := safemath.Add(aggregate, amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeOverflow, "prospective aggregate overflows")
	}

	// The informational notice fires whenever the prospective total would
	// meet or exceed the target; the hard rejection applies only when it
	// exceeds. Observers rely on the ordering to tell "target reached" from
	// "this contribution is too large".
	if prospective >= s.params.TargetAmount {
		s.notices.Emit(notice.Event{
			Kind:     notice.KindTooMuchAttempted,
			Account:  caller,
			Needed:   s.params.TargetAmount - aggregate,
			Provided: amount,
		})
	}
	if prospective > s.params.TargetAmount {
		return dErrors.New(dErrors.CodeValidation, "contribution would exceed the target amount")
	}

	if err := s.treasury.Transfer(ctx, caller, s.pool, amount); err != nil {
		return err
	}

	inv := &models.Investment{
		Account:    caller,
		Name:       name,
		Amount:     amount,
		RecordedAt: s.clock(),
	}
	if err := s.ledger.Record(ctx, inv); err != nil {
		// Membership was checked above under the same mutex; any failure
		// here is infrastructure, and the transfer has already completed.
		s.logger.ErrorContext(ctx, "ledger record failed after transfer",
			"account", caller.String(),
			"error", err.Error(),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record investment")
	}

	s.notices.Emit(notice.Event{Kind: notice.KindNewContribution, Account: caller, Amount: amount})
	if prospective == s.params.TargetAmount {
		s.notices.Emit(notice.Event{Kind: notice.KindTargetReached, Amount: prospective})
	}
	s.metrics.SetAggregate(prospective, count+1)
	return nil
}

// Withdraw returns the caller's full committed amount and deletes the
// record. The record is removed only after the transfer is confirmed.
func (s *Service) Withdraw(ctx context.Context, caller domain.AccountID) error {
	ctx, span := s.tracer.Start(ctx, "escrow.withdraw")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	err := s.withdraw(ctx, caller)
	s.mu.Unlock()

	s.observe("withdraw", start, err)
	return err
}

func (s *Service) withdraw(ctx context.Context, caller domain.AccountID) error {
	if s.cycle != models.CycleSubscribing {
		return dErrors.New(dErrors.CodeInvalidState, "withdrawal is only possible while subscribing")
	}

	inv, err := s.ledger.Find(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "caller holds no active investment")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up investment")
	}

	if err := s.treasury.Transfer(ctx, s.pool, caller, inv.Amount); err != nil {
		return err
	}
	if err := s.ledger.Remove(ctx, caller); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear investment")
	}

	s.notices.Emit(notice.Event{Kind: notice.KindWithdrawal, Account: caller, Amount: inv.Amount})

	aggregate, count, err := s.aggregate(ctx)
	if err == nil {
		s.metrics.SetAggregate(aggregate, count)
	}
	return nil
}

// AdvanceToDividend moves the pooled funds into the custodian's custody and
// opens the dividend phase. Succeeds at most once per offer.
func (s *Service) AdvanceToDividend(ctx context.Context, caller domain.AccountID) error {
	ctx, span := s.tracer.Start(ctx, "escrow.advance")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	err := s.advanceToDividend(ctx, caller)
	s.mu.Unlock()

	s.observe("advance", start, err)
	return err
}

func (s *Service) advanceToDividend(ctx context.Context, caller domain.AccountID) error {
	if err := s.guard.RequireCustodian(ctx, caller); err != nil {
		return err
	}
	if s.cycle != models.CycleSubscribing {
		return dErrors.New(dErrors.CodeInvalidState, "offer is not in the subscribing phase")
	}

	aggregate, _, err := s.aggregate(ctx)
	if err != nil {
		return err
	}
	if aggregate != s.params.TargetAmount {
		return dErrors.New(dErrors.CodeValidation, "aggregate amount must equal the target exactly")
	}

	if err := s.treasury.Transfer(ctx, s.pool, s.params.Custodian, aggregate); err != nil {
		return err
	}

	s.transition(ctx, models.CycleDividend)
	s.notices.Emit(notice.Event{Kind: notice.KindAdvancedToDividend, Amount: aggregate})
	return nil
}

// InterestDue reports the amount the custodian must supply for one interest
// payment: aggregate * percentage, deliberately not divided by 100. The
// unscaled factor reproduces the upstream payout semantics and changing it
// would change observable amounts.
func (s *Service) InterestDue(ctx context.Context, caller domain.AccountID) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.interest_due")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	due, err := s.interestDue(ctx, caller)
	s.mu.Unlock()

	s.observe("interest_due", start, err)
	return due, err
}

func (s *Service) interestDue(ctx context.Context, caller domain.AccountID) (uint64, error) {
	if err := s.guard.RequireCustodian(ctx, caller); err != nil {
		return 0, err
	}
	if s.cycle != models.CycleDividend {
		return 0, dErrors.New(dErrors.CodeInvalidState, "interest is only due in the dividend phase")
	}

	aggregate, _, err := s.aggregate(ctx)
	if err != nil {
		return 0, err
	}
	due, err := safemath.Mul(aggregate, s.params.InterestPercent)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeOverflow, "interest computation overflows")
	}
	return due, nil
}

// PayInterests pays every participant amount * percentage from the supplied
// pool, visiting the ledger enumeration exactly once in order. Interest is
// not principal: investments stay recorded. If an individual transfer fails
// the call fails; transfers already completed in the same call stay applied.
func (s *Service) PayInterests(ctx context.Context, caller domain.AccountID, supplied uint64) error {
	ctx, span := s.tracer.Start(ctx, "escrow.pay_interests")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	err := s.payInterests(ctx, caller, supplied)
	s.mu.Unlock()

	s.observe("pay_interests", start, err)
	return err
}

func (s *Service) payInterests(ctx context.Context, caller domain.AccountID, supplied uint64) error {
	due, err := s.interestDue(ctx, caller)
	if err != nil {
		return err
	}
	if supplied != due {
		return dErrors.New(dErrors.CodeAmountMismatch, "supplied amount must equal the interest due exactly")
	}

	if err := s.treasury.Transfer(ctx, s.params.Custodian, s.pool, supplied); err != nil {
		return err
	}

	investments, err := s.ledger.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enumerate ledger")
	}
	for _, inv := range investments {
		share, err := safemath.Mul(inv.Amount, s.params.InterestPercent)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeOverflow, "interest share overflows")
		}
		if err := s.treasury.Transfer(ctx, s.pool, inv.Account, share); err != nil {
			s.logger.ErrorContext(ctx, "interest payment stopped mid-pass",
				"account", inv.Account.String(),
				"share", share,
				"error", err.Error(),
			)
			return err
		}
	}
	return nil
}

// Cancel closes the offer and refunds every active investment. From the
// subscribing phase the custodian supplies nothing (custody was never
// taken); from the dividend phase the custodian must resupply exactly the
// current aggregate before refunds are issued.
func (s *Service) Cancel(ctx context.Context, caller domain.AccountID, supplied uint64) error {
	ctx, span := s.tracer.Start(ctx, "escrow.cancel")
	defer span.End()
	start := s.clock()

	s.mu.Lock()
	err := s.cancel(ctx, caller, supplied)
	s.mu.Unlock()

	s.observe("cancel", start, err)
	return err
}

func (s *Service) cancel(ctx context.Context, caller domain.AccountID, supplied uint64) error {
	if err := s.guard.RequireCustodian(ctx, caller); err != nil {
		return err
	}

	switch s.cycle {
	case models.CycleSubscribing:
		if supplied != 0 {
			return dErrors.New(dErrors.CodeAmountMismatch, "cancellation before custody requires no payment")
		}
	case models.CycleDividend:
		aggregate, _, err := s.aggregate(ctx)
		if err != nil {
			return err
		}
		if supplied != aggregate {
			return dErrors.New(dErrors.CodeAmountMismatch, "supplied amount must equal the current aggregate exactly")
		}
		if err := s.treasury.Transfer(ctx, s.params.Custodian, s.pool, supplied); err != nil {
			return err
		}
	default:
		return dErrors.New(dErrors.CodeInvalidState, "offer is already closed")
	}

	if err := s.refundAll(ctx); err != nil {
		return err
	}

	s.transition(ctx, models.CycleClosed)
	s.notices.Emit(notice.Event{Kind: notice.KindOfferClosed})
	s.metrics.SetAggregate(0, 0)
	return nil
}

// refundAll iterates the ledger in order, returning each participant's full
// amount and clearing the record only after that transfer succeeds. A
// failure stops the pass: already-refunded participants remain refunded.
// The completion notice fires only once every participant has been visited.
func (s *Service) refundAll(ctx context.Context) error {
	investments, err := s.ledger.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enumerate ledger")
	}

	var refunded uint64
	for _, inv := range investments {
		if err := s.treasury.Transfer(ctx, s.pool, inv.Account, inv.Amount); err != nil {
			s.logger.ErrorContext(ctx, "refund stopped mid-pass",
				"account", inv.Account.String(),
				"amount", inv.Amount,
				"refunded_so_far", refunded,
				"error", err.Error(),
			)
			return err
		}
		if err := s.ledger.Remove(ctx, inv.Account); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear refunded investment")
		}
		refunded += inv.Amount
	}

	s.notices.Emit(notice.Event{Kind: notice.KindAllRefunded, Amount: refunded})
	return nil
}

// Aggregate is the read-only total of active investments, available to any
// caller in any state.
func (s *Service) Aggregate(ctx context.Context) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.aggregate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	aggregate, _, err := s.aggregate(ctx)
	return aggregate, err
}

// aggregate sums the enumeration with overflow-checked addition. Callers
// must hold the mutex.
func (s *Service) aggregate(ctx context.Context) (uint64, int, error) {
	investments, err := s.ledger.List(ctx)
	if err != nil {
		return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enumerate ledger")
	}
	var sum uint64
	for _, inv := range investments {
		sum, err = safemath.Add(sum, inv.Amount)
		if err != nil {
			return 0, 0, dErrors.Wrap(err, dErrors.CodeOverflow, "aggregate amount overflows")
		}
	}
	return sum, len(investments), nil
}

func (s *Service) transition(ctx context.Context, next models.Cycle) {
	if !s.cycle.CanTransitionTo(next) {
		// Guards above make this unreachable; log loudly rather than panic.
		s.logger.ErrorContext(ctx, "illegal cycle transition attempted",
			"from", s.cycle.String(),
			"to", next.String(),
		)
		return
	}
	s.logger.InfoContext(ctx, "cycle transition",
		"from", s.cycle.String(),
		"to", next.String(),
	)
	s.cycle = next
	s.metrics.SetCycle(next.String(), models.CycleNames())
}

func (s *Service) observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveOperation(operation, result, s.clock().Sub(start))
}
