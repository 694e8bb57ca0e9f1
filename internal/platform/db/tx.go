package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Beginner opens transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions configures InTx. A zero IsoLevel means RepeatableRead.
type TxOptions struct {
	pgx.TxOptions
	// Resource names the records written, for ConcurrencyConflictError.
	Resource string
}

// WithTx executes fn within a RepeatableRead transaction.
func WithTx(ctx context.Context, pool Beginner, fn func(pgx.Tx) error) error {
	return InTx(ctx, pool, TxOptions{}, fn)
}

// InTx executes fn within a transaction. fn errors roll the transaction
// back. Unique violations, serialization failures and deadlocks, whether
// raised by fn or by the commit, surface as ConcurrencyConflictError.
func InTx(ctx context.Context, pool Beginner, opts TxOptions, fn func(pgx.Tx) error) error {
	if pool == nil {
		return errors.New("platform/db: pool not initialised")
	}
	if opts.IsoLevel == "" {
		opts.IsoLevel = pgx.RepeatableRead
	}
	if opts.Resource == "" {
		opts.Resource = "record"
	}
	tx, err := pool.BeginTx(ctx, opts.TxOptions)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return shared.TranslatePgError(opts.Resource, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.TranslatePgError(opts.Resource, fmt.Errorf("platform/db: commit tx: %w", err))
	}
	return nil
}
