package scopedb

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/logger"
)

// InTx runs stmts inside a database transaction carried through the context.
// The generic operations in this package pick the transaction up
// transparently, so nested InTx calls join the outermost transaction, which
// alone commits or rolls back.
func (d *Db) InTx(ctx context.Context, stmts func(ctx context.Context) error) (err error) {
	if getTx(ctx) != nil {
		return stmts(ctx)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(ErrDatabaseError, errors.WithCause(err))
	}
	ctx = setTx(ctx, tx)

	defer func() {
		if err == nil {
			err = tx.Commit()
			if err != nil {
				err = errors.Wrap(ErrDatabaseError, errors.WithCause(err))
			}
			return
		}
		// Already failing; roll back and log any new error.
		if err2 := tx.Rollback(); err2 != nil {
			logger.Ctx(ctx).Warn().Err(err2).Msg("db rollback failed")
		}
	}()

	err = stmts(ctx)
	return
}

type txKeyType int

const txKey txKeyType = iota

func setTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

func getTx(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey).(*sqlx.Tx)
	return tx
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// q returns the executor for the context: the transaction when one is in
// flight, the pool otherwise.
func (d *Db) q(ctx context.Context) queryer {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return d.db
}
