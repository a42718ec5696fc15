package treasury

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crowdvault/pkg/domain"
	"crowdvault/pkg/platform/sentinel"
)

// PostgresStore persists balances in PostgreSQL. Transfers run in a single
// transaction; the CHECK constraint backs up the in-query balance guard.
//
// Schema:
//
//	CREATE TABLE treasury_balances (
//	    account TEXT PRIMARY KEY,
//	    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed balance table.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Transfer(ctx context.Context, from, to domain.AccountID, amount uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE treasury_balances
		SET balance = balance - $2
		WHERE account = $1 AND balance >= $2
	`, from.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if affected == 0 {
		return sentinel.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO treasury_balances (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance
	`, to.String(), int64(amount)); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Deposit(ctx context.Context, account domain.AccountID, amount uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treasury_balances (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance
	`, account.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("deposit to %s: %w", account, err)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM treasury_balances WHERE account = $1`, account.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance of %s: %w", account, err)
	}
	return uint64(balance), nil
}
