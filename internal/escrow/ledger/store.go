// Package ledger keeps the keyed investment records: who committed how much,
// in which order. Aggregate accounting and disbursement both walk the
// ledger's enumeration, so enumeration order must be stable insertion order
// and every identity must appear at most once.
package ledger

import (
	"context"

	"crowdvault/internal/escrow/models"
	"crowdvault/pkg/domain"
)

// Store is interface-driven so the escrow service stays testable and the
// in-memory and PostgreSQL implementations can swap without rewiring
// business code.
type Store interface {
	// Record inserts a new investment. Returns sentinel.ErrConflict when the
	// account already holds an active investment; top-ups are not supported.
	Record(ctx context.Context, inv *models.Investment) error

	// Find returns the account's active investment, or sentinel.ErrNotFound.
	Find(ctx context.Context, account domain.AccountID) (*models.Investment, error)

	// Remove deletes the investment and its enumeration entry atomically.
	// Returns sentinel.ErrNotFound when the account has no active record.
	Remove(ctx context.Context, account domain.AccountID) error

	// List enumerates all active investments in insertion order at time of
	// call. Every aggregate and disbursement pass iterates this exactly once.
	List(ctx context.Context) ([]*models.Investment, error)
}
