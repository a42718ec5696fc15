// Package treasury implements the value-transfer primitive the escrow engine
// depends on. Each transfer attempt either completes or fails as a unit and
// reports the outcome; a failure is a hard stop for the caller, never a
// retryable condition, and no compensating rollback of other attempts is
// performed here.
package treasury

import (
	"context"

	"crowdvault/pkg/domain"
)

// Store keeps account balances. Transfer is a single store operation so each
// implementation can make the debit and credit atomic (one lock in memory,
// one transaction in PostgreSQL).
type Store interface {
	// Transfer moves amount from one account to another. Returns
	// sentinel.ErrInsufficientFunds when the source cannot cover it.
	Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error

	// Deposit mints amount into an account. Used to fund accounts at boot
	// and in tests; the escrow engine itself never mints.
	Deposit(ctx context.Context, account domain.AccountID, amount uint64) error

	// Balance returns the account's balance; unknown accounts hold zero.
	Balance(ctx context.Context, account domain.AccountID) (uint64, error)
}
