package database

import (
	"context"
	"database/sql"
	"fmt"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
	}
}

// WithTransaction runs fn inside a transaction and commits when fn returns
// nil. A panic in fn rolls back and is re-raised. Deadlocks, serialization
// failures and lock timeouts come back wrapped with ErrTransient; nothing
// is retried here.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return MarkTransient(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return MarkTransient(fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err))
		}
		return MarkTransient(err)
	}

	if err := tx.Commit(); err != nil {
		return MarkTransient(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}
