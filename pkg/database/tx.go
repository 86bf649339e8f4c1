package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// TxManager runs a unit of work in a single transaction. Repositories pick
// the transaction up from the context through Conn.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgxTxManager struct {
	db PgxIface
}

func NewTxManager(db PgxIface) TxManager {
	return &pgxTxManager{db: db}
}

// WithTx commits when fn returns nil and rolls back otherwise. Nested calls
// join the outer transaction.
func (m *pgxTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Conn returns the transaction bound to ctx, or the pool.
func Conn(ctx context.Context, db PgxIface) Querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// WithSavepoint runs fn inside a savepoint of the transaction bound to ctx,
// or inside a fresh transaction when there is none. A failing fn leaves the
// outer transaction usable.
func WithSavepoint(ctx context.Context, db PgxIface, fn func(q Querier) error) error {
	var (
		sp  pgx.Tx
		err error
	)
	if tx, ok := txFromContext(ctx); ok {
		sp, err = tx.Begin(ctx)
	} else {
		sp, err = db.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}

	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}

	return sp.Commit(ctx)
}
