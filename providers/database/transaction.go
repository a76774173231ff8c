package database

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Transaction is the scoped transaction bound at TransactionNamespace. It is
// rolled back when its scope is disposed without a Commit.
type Transaction struct {
	pgx.Tx

	mu   sync.Mutex
	done bool
}

// NewTransaction wraps tx.
func NewTransaction(tx pgx.Tx) *Transaction {
	return &Transaction{Tx: tx}
}

// Commit commits the transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return t.Tx.Commit(ctx)
}

// Rollback rolls the transaction back.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return t.Tx.Rollback(ctx)
}

// Dispose rolls back a transaction that was neither committed nor rolled back.
func (t *Transaction) Dispose() error {
	err := t.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
