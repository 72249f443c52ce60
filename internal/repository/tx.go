package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxRunner scopes a unit of work to one database transaction.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner constructs a TxRunner over the shared handle.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic. Everything fn does must go through tx.
func (r *TxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *TxRunner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// lockSuffix returns the row lock clause for dialects that support it.
// SQLite serialises writers at the database level instead.
func lockSuffix(ext sqlx.ExtContext) string {
	if ext.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
