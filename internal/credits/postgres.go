package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by the ledger. Queries carry a
// "--sql <uuid>" marker line so an infra.SQLRunner can log them.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	qCreateCreditBalances = `
--sql 3b0c6f1e-52d4-4c1a-9a7e-0f6d2c9e8a11
CREATE TABLE IF NOT EXISTS credit_balances (
	user_id    TEXT PRIMARY KEY,
	balance    INTEGER NOT NULL CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	qSeedBalance = `
--sql 8e27a4d9-1f3b-4b6e-bc52-7d0a91e4f203
INSERT INTO credit_balances (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING balance`

	qDebitBalance = `
--sql c4f19b72-6a0e-4d83-9e15-2b7c8d3a5f64
UPDATE credit_balances
SET balance = balance - $2, updated_at = now()
WHERE user_id = $1 AND balance >= $2
RETURNING balance`

	qCreditBalance = `
--sql 5a9d3e60-b7c2-41f8-8d04-ee6b1c2f7a95
INSERT INTO credit_balances (user_id, balance)
VALUES ($1, $2 + $3)
ON CONFLICT (user_id) DO UPDATE SET balance = credit_balances.balance + $3, updated_at = now()
RETURNING balance`
)

// PostgresLedger persists balances in the credit_balances table.
type PostgresLedger struct {
	db       DB
	starting int
}

func NewPostgresLedger(db DB, starting int) *PostgresLedger {
	return &PostgresLedger{db: db, starting: starting}
}

// EnsureSchema creates the balances table when missing.
func (p *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, qCreateCreditBalances); err != nil {
		return fmt.Errorf("create credit_balances: %w", err)
	}
	return nil
}

func (p *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := p.db.QueryRow(ctx, qSeedBalance, userID, p.starting).Scan(&balance); err != nil {
		return 0, fmt.Errorf("seed balance: %w", err)
	}
	return balance, nil
}

func (p *PostgresLedger) Debit(ctx context.Context, userID string, amount int) (int, bool, error) {
	current, err := p.Balance(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	var remaining int
	err = p.db.QueryRow(ctx, qDebitBalance, userID, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("debit balance: %w", err)
	}
	return remaining, true, nil
}

func (p *PostgresLedger) Credit(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	if err := p.db.QueryRow(ctx, qCreditBalance, userID, p.starting, amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}
