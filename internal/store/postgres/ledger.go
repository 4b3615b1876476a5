package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colonyforge/marketd/internal/domain"
)

// Ledger implements domain.Ledger on a pgx connection pool.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given client.
func NewLedger(c *Client) *Ledger {
	return &Ledger{pool: c.Pool()}
}

// Update runs fn inside a serializable read-write transaction. Any error from
// fn rolls the transaction back; otherwise it commits.
func (l *Ledger) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	return l.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

// View runs fn inside a read-only transaction.
func (l *Ledger) View(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	return l.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (l *Ledger) run(ctx context.Context, opts pgx.TxOptions, fn func(tx domain.LedgerTx) error) error {
	pgtx, err := l.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(&ledgerTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Close releases the connection pool. The pool is shared with the owning
// Client, so Close here is a no-op; the Client closes it.
func (l *Ledger) Close() {}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)

// ledgerTx implements domain.LedgerTx over one pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}
