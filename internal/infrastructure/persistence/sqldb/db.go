// Package sqldb carries a sqlx transaction through context so repositories
// join whatever unit of work the caller opened.
package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

type contextKey struct{}

var txKey contextKey

// DB wraps sqlx.DB and implements port.TransactionManager
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(db *sqlx.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// WithTransaction runs fn in a transaction stored in its context.
// A context that already carries a transaction is reused.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Executor returns the context transaction if there is one, otherwise the pool
func (db *DB) Executor(ctx context.Context) sqlx.ExtContext {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

func extractTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

var _ port.TransactionManager = (*DB)(nil)
