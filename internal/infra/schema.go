package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal rows are append-only: the transactions table has no UPDATE or DELETE
// statement anywhere in this codebase, and wallets are never dropped.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        owner_id   BIGINT NOT NULL,
        currency   TEXT NOT NULL,
        balance    NUMERIC(20,4) NOT NULL DEFAULT 0,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (owner_id, currency)
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        txn_id        UUID PRIMARY KEY,
        from_owner    BIGINT,
        to_owner      BIGINT,
        from_currency TEXT NOT NULL,
        to_currency   TEXT NOT NULL,
        from_amount   NUMERIC(20,4) NOT NULL DEFAULT 0,
        to_amount     NUMERIC(20,4) NOT NULL DEFAULT 0,
        fx_rate       NUMERIC(20,8) NOT NULL DEFAULT 1,
        txn_timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS transactions_from_owner_idx
        ON transactions (from_owner, txn_timestamp)`,
	`CREATE INDEX IF NOT EXISTS transactions_to_owner_idx
        ON transactions (to_owner, txn_timestamp)`,
}

// Migrate applies the schema at boot. Statements are idempotent and run inside
// one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return tx.Commit(ctx)
}
