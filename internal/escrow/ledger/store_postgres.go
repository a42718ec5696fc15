package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"crowdvault/internal/escrow/models"
	"crowdvault/pkg/domain"
	"crowdvault/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in PostgreSQL. Insertion order is kept
// by a bigserial position column, so enumeration order survives restarts.
//
// Schema:
//
//	CREATE TABLE escrow_investments (
//	    position    BIGSERIAL PRIMARY KEY,
//	    account     TEXT NOT NULL UNIQUE,
//	    name        TEXT NOT NULL DEFAULT '',
//	    amount      BIGINT NOT NULL CHECK (amount >= 0),
//	    recorded_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed ledger.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Record(ctx context.Context, inv *models.Investment) error {
	query := `
		INSERT INTO escrow_investments (account, name, amount, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, inv.Account.String(), inv.Name, int64(inv.Amount), inv.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("record investment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, account domain.AccountID) (*models.Investment, error) {
	query := `
		SELECT account, name, amount, recorded_at
		FROM escrow_investments
		WHERE account = $1
	`
	var (
		inv    models.Investment
		acct   string
		amount int64
	)
	err := s.db.QueryRowContext(ctx, query, account.String()).Scan(&acct, &inv.Name, &amount, &inv.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find investment: %w", err)
	}
	inv.Account = domain.AccountID(acct)
	inv.Amount = uint64(amount)
	return &inv, nil
}

func (s *PostgresStore) Remove(ctx context.Context, account domain.AccountID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM escrow_investments WHERE account = $1`, account.String())
	if err != nil {
		return fmt.Errorf("remove investment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove investment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Investment, error) {
	query := `
		SELECT account, name, amount, recorded_at
		FROM escrow_investments
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []*models.Investment
	for rows.Next() {
		var (
			inv    models.Investment
			acct   string
			amount int64
		)
		if err := rows.Scan(&acct, &inv.Name, &amount, &inv.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		inv.Account = domain.AccountID(acct)
		inv.Amount = uint64(amount)
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	return out, nil
}
