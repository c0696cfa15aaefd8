package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/globalbank/multiledger/internal/wallet"
)

// PostgresLedger persists wallets and journal entries in PostgreSQL. The
// transactions table is written once per operation and never updated or
// deleted afterwards; reconstruction reads derive everything from it. Each
// operation acquires its own transaction; the deferred rollback guarantees no
// partial effect survives any exit path before Commit.
type PostgresLedger struct {
	db      *pgxpool.Pool
	wallets *wallet.PostgresStore
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db, wallets: wallet.NewPostgresStore()}
}

// appendEntry writes one immutable journal row inside the caller's
// transaction. The timestamp is server-assigned.
func appendEntry(ctx context.Context, tx pgx.Tx, e Entry) (string, error) {
	txnID := uuid.New()
	fxRate := e.FxRate
	if fxRate.IsZero() {
		fxRate = decimal.NewFromInt(1)
	}
	_, err := tx.Exec(ctx, `INSERT INTO transactions
        (txn_id, from_owner, to_owner, from_currency, to_currency, from_amount, to_amount, fx_rate, txn_timestamp)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		txnID, e.FromOwner, e.ToOwner, e.FromCurrency, e.ToCurrency, e.FromAmount, e.ToAmount, fxRate)
	if err != nil {
		return "", fmt.Errorf("append journal entry: %w", err)
	}
	return txnID.String(), nil
}

func (l *PostgresLedger) Deposit(ctx context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := l.wallets.Ensure(ctx, tx, owner, currency); err != nil {
		return decimal.Zero, err
	}
	balance, err := l.wallets.Adjust(ctx, tx, owner, currency, amount)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := appendEntry(ctx, tx, Entry{
		ToOwner:      &owner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   decimal.Zero,
		ToAmount:     amount,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *PostgresLedger) Withdraw(ctx context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// The row lock taken here is held through the debit below, so the
	// sufficiency check and the mutation form one atomic step.
	balance, err := l.wallets.BalanceForUpdate(ctx, tx, owner, currency)
	if errors.Is(err, wallet.ErrNotFound) {
		return decimal.Zero, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	balance, err = l.wallets.Adjust(ctx, tx, owner, currency, amount.Neg())
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := appendEntry(ctx, tx, Entry{
		FromOwner:    &owner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   amount,
		ToAmount:     decimal.Zero,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *PostgresLedger) Transfer(ctx context.Context, fromOwner, toOwner int64, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	senderBalance, err := l.wallets.BalanceForUpdate(ctx, tx, fromOwner, currency)
	if errors.Is(err, wallet.ErrNotFound) {
		return ErrSenderWalletNotFound
	}
	if err != nil {
		return err
	}
	if senderBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	// Receiver creation only after the sender passed validation; a failed
	// transfer must not leave a spurious wallet behind.
	if _, err := l.wallets.Ensure(ctx, tx, toOwner, currency); err != nil {
		return err
	}

	if _, err := l.wallets.Adjust(ctx, tx, fromOwner, currency, amount.Neg()); err != nil {
		return err
	}
	if _, err := l.wallets.Adjust(ctx, tx, toOwner, currency, amount); err != nil {
		return err
	}

	if _, err := appendEntry(ctx, tx, Entry{
		FromOwner:    &fromOwner,
		ToOwner:      &toOwner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   amount,
		ToAmount:     amount,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Balances derives per-currency balances from the journal, splitting each
// entry into signed legs and summing them per currency.
func (l *PostgresLedger) Balances(ctx context.Context, owner int64) ([]BalanceLine, error) {
	const query = `
        WITH txn_impact AS (
            SELECT from_owner AS owner_id, from_currency AS currency, -from_amount AS amount
            FROM transactions
            WHERE from_owner IS NOT NULL

            UNION ALL

            SELECT to_owner AS owner_id, to_currency AS currency, to_amount AS amount
            FROM transactions
            WHERE to_owner IS NOT NULL
        )
        SELECT currency, SUM(amount) AS balance
        FROM txn_impact
        WHERE owner_id = $1
        GROUP BY currency
        ORDER BY currency`

	rows, err := l.db.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []BalanceLine
	for rows.Next() {
		var line BalanceLine
		if err := rows.Scan(&line.Currency, &line.Balance); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrOwnerNotFound
	}
	return lines, nil
}

func (l *PostgresLedger) ReconstructedBalance(ctx context.Context, owner int64, currency string) (decimal.Decimal, error) {
	const query = `
        WITH txn_impact AS (
            SELECT from_owner AS owner_id, from_currency AS currency, -from_amount AS amount
            FROM transactions
            WHERE from_owner IS NOT NULL

            UNION ALL

            SELECT to_owner AS owner_id, to_currency AS currency, to_amount AS amount
            FROM transactions
            WHERE to_owner IS NOT NULL
        )
        SELECT COALESCE(SUM(amount), 0)
        FROM txn_impact
        WHERE owner_id = $1 AND currency = $2`

	var balance decimal.Decimal
	if err := l.db.QueryRow(ctx, query, owner, currency).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *PostgresLedger) StoredBalance(ctx context.Context, owner int64, currency string) (decimal.Decimal, error) {
	balance, err := l.wallets.Balance(ctx, l.db, owner, currency)
	if errors.Is(err, wallet.ErrNotFound) {
		return decimal.Zero, ErrWalletNotFound
	}
	return balance, err
}

// History reconstructs the owner's running balances with a window sum
// partitioned per (owner, currency), ordered by (txn_timestamp, txn_id) to
// break timestamp ties deterministically, and returns rows newest first.
func (l *PostgresLedger) History(ctx context.Context, owner int64) ([]Record, error) {
	const query = `
        WITH ledger_view AS (
            SELECT txn_id, txn_timestamp, from_owner AS owner_id, from_currency AS currency, -from_amount AS amount
            FROM transactions
            WHERE from_owner IS NOT NULL

            UNION ALL

            SELECT txn_id, txn_timestamp, to_owner AS owner_id, to_currency AS currency, to_amount AS amount
            FROM transactions
            WHERE to_owner IS NOT NULL
        ),
        balance_calc AS (
            SELECT txn_id, txn_timestamp, owner_id, currency, amount,
                SUM(amount) OVER (
                    PARTITION BY owner_id, currency
                    ORDER BY txn_timestamp, txn_id
                ) AS running_balance
            FROM ledger_view
        )
        SELECT txn_id, currency, amount, running_balance, txn_timestamp
        FROM balance_calc
        WHERE owner_id = $1
        ORDER BY txn_timestamp DESC, txn_id DESC`

	rows, err := l.db.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var txnID uuid.UUID
		var amount decimal.Decimal
		var rec Record
		if err := rows.Scan(&txnID, &rec.Currency, &amount, &rec.NewBalance, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.TxnID = txnID.String()
		rec.PreviousBalance = rec.NewBalance.Sub(amount)
		rec.Debit = decimal.Zero
		rec.Credit = decimal.Zero
		if amount.IsNegative() {
			rec.Debit = amount.Neg()
		} else {
			rec.Credit = amount
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
