package treasury

import (
	"context"
	"errors"

	"crowdvault/pkg/domain"
	dErrors "crowdvault/pkg/domain-errors"
	"crowdvault/pkg/platform/sentinel"
	"crowdvault/pkg/safemath"
)

// Service translates store facts into coded domain errors. It is the
// concrete implementation of the escrow engine's value-transfer collaborator.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Transfer moves amount between accounts. Any failure is terminal for the
// attempt; the caller must surface it, not retry.
func (s *Service) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	if err := s.store.Transfer(ctx, from, to, amount); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.Wrap(err, dErrors.CodeTransferFailed, "source account cannot cover transfer")
		}
		if errors.Is(err, safemath.ErrOverflow) {
			return dErrors.Wrap(err, dErrors.CodeOverflow, "transfer would overflow destination balance")
		}
		return dErrors.Wrap(err, dErrors.CodeTransferFailed, "transfer did not complete")
	}
	return nil
}

// Deposit mints funds into an account.
func (s *Service) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	if err := s.store.Deposit(ctx, account, amount); err != nil {
		if errors.Is(err, safemath.ErrOverflow) {
			return dErrors.Wrap(err, dErrors.CodeOverflow, "deposit would overflow account balance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "deposit did not complete")
	}
	return nil
}

// Balance reports the current balance of an account.
func (s *Service) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	balance, err := s.store.Balance(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}
