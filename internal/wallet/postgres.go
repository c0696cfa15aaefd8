package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx. Store
// methods take it explicitly so a coordinator can run them inside its own
// transaction; balance checks and mutations must share one unit of work.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads and mutates wallet rows in PostgreSQL.
type PostgresStore struct{}

// NewPostgresStore builds a store over the wallets table.
func NewPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

// Ensure returns the wallet balance, creating the row with balance 0 when it
// does not exist. Concurrent creators race on the primary key; the loser's
// insert is a no-op and the read-back below observes the winner's row.
func (s *PostgresStore) Ensure(ctx context.Context, q Querier, owner int64, currency string) (decimal.Decimal, error) {
	_, err := q.Exec(ctx, `INSERT INTO wallets (owner_id, currency, balance, updated_at)
        VALUES ($1, $2, 0, now())
        ON CONFLICT (owner_id, currency) DO NOTHING`, owner, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Balance(ctx, q, owner, currency)
}

// Balance reads the stored balance without locking the row.
func (s *PostgresStore) Balance(ctx context.Context, q Querier, owner int64, currency string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `SELECT balance FROM wallets
        WHERE owner_id = $1 AND currency = $2`, owner, currency).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// BalanceForUpdate reads the balance under a row-level lock held until the
// surrounding transaction ends, so a sufficiency check and the debit that
// follows it act as one atomic step.
func (s *PostgresStore) BalanceForUpdate(ctx context.Context, q Querier, owner int64, currency string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `SELECT balance FROM wallets
        WHERE owner_id = $1 AND currency = $2 FOR UPDATE`, owner, currency).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Adjust applies balance += delta in a single statement and returns the new
// balance. The read-modify-write happens inside the database, never as a
// separate read followed by a blind write.
func (s *PostgresStore) Adjust(ctx context.Context, q Querier, owner int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `UPDATE wallets
        SET balance = balance + $3, updated_at = now()
        WHERE owner_id = $1 AND currency = $2
        RETURNING balance`, owner, currency, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// OwnerBalances lists every wallet held by the owner, ordered by currency.
func (s *PostgresStore) OwnerBalances(ctx context.Context, q Querier, owner int64) ([]Wallet, error) {
	rows, err := q.Query(ctx, `SELECT owner_id, currency, balance, updated_at
        FROM wallets WHERE owner_id = $1 ORDER BY currency`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.OwnerID, &w.Currency, &w.Balance, &w.UpdatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
