package scopedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jswidler/tenantscope"
	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/scopedb/internal/columns"
	"github.com/jswidler/tenantscope/ulid"
)

// Generic operations over any record type with db-tagged fields.  Some
// columns are special:
//
//	`id` - primary key as string; assigned a ULID on insert when empty
//	`tenant_id` (or the configured tenant column) - stamped on insert and
//	    filtered on reads by the interceptor chain; never updated
//	`created_at` / `updated_at` - timestamps managed by these functions
//
// Every operation runs the Db's interceptor chain first, so a context with a
// tenant only ever writes and sees that tenant's rows.

func (d *Db) beforeCreate(ctx context.Context, record any) error {
	for _, ic := range d.chain {
		if err := ic.BeforeCreate(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (d *Db) beforeRead(ctx context.Context, q *tenantscope.Query) error {
	for _, ic := range d.chain {
		if err := ic.BeforeRead(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a new row.  The interceptor chain stamps the tenant column
// first (failing the write when the context has no tenant), then the row is
// written and re-read from RETURNING so generated values land back in row.
func Insert[T any](ctx context.Context, d *Db, table string, row *T) error {
	if err := d.beforeCreate(ctx, row); err != nil {
		return err
	}

	cols, err := columns.Of(row)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, found := cols.Get("created_at"); found {
		cols.Set("created_at", now)
	}
	if _, found := cols.Get("updated_at"); found {
		cols.Set("updated_at", now)
	}
	if id, found := cols.Get("id"); found && id == "" {
		cols.Set("id", ulid.New())
	}

	query, args := buildInsert(table, cols)

	var r T
	err = d.q(ctx).GetContext(ctx, &r, query, args...)
	if err != nil {
		return wrapExecErr(err)
	}
	*row = r
	return nil
}

// Get fetches the single row matching the query, scoped by the chain.
func Get[T any](ctx context.Context, d *Db, q *tenantscope.Query) (*T, error) {
	if err := d.beforeRead(ctx, q); err != nil {
		return nil, err
	}
	query, args := q.SelectSQL()
	return queryOne[T](ctx, d.q(ctx), query, args...)
}

// GetById fetches one row by primary key.  With a tenant in the context a row
// belonging to another tenant is ErrNotFound, not a leak.
func GetById[T any](ctx context.Context, d *Db, table string, id string) (*T, error) {
	return Get[T](ctx, d, tenantscope.NewQuery(table).Where(`"id" = ?`, id))
}

// Select fetches all rows matching the query, scoped by the chain.
func Select[T any](ctx context.Context, d *Db, q *tenantscope.Query) ([]*T, error) {
	if err := d.beforeRead(ctx, q); err != nil {
		return nil, err
	}
	query, args := q.SelectSQL()
	return queryMany[T](ctx, d.q(ctx), query, args...)
}

func SelectByIds[T any](ctx context.Context, d *Db, table string, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return Select[T](ctx, d, tenantscope.NewQuery(table).WhereIn("id", ids))
}

// Count counts the rows matching the query, scoped by the chain.
func Count(ctx context.Context, d *Db, q *tenantscope.Query) (int64, error) {
	if err := d.beforeRead(ctx, q); err != nil {
		return 0, err
	}
	query, args := q.CountSQL()
	var n int64
	err := d.q(ctx).GetContext(ctx, &n, query, args...)
	if err != nil {
		return 0, errors.Wrap(ErrDatabaseError, errors.WithCause(err))
	}
	return n, nil
}

// Update rewrites a row by primary key.  The tenant column and created_at are
// never part of the SET list; the WHERE clause is scoped by the chain, so a
// tenant cannot update another tenant's row even with a known id.
func Update[T any](ctx context.Context, d *Db, table string, row *T) error {
	cols, err := columns.Of(row)
	if err != nil {
		return err
	}

	if _, found := cols.Get("updated_at"); !found {
		return errors.Wrap(ErrNotUpdateable)
	}
	cols.Set("updated_at", time.Now().UTC())

	id, _ := cols.Get("id")
	if id == nil || id == "" {
		return errors.Wrap(ErrDatabaseError, errors.WithMessage("failed to update row, no id"))
	}
	cols.Remove("id")
	cols.Remove("created_at")
	for _, field := range d.immutableFields() {
		cols.Remove(field)
	}

	q := tenantscope.NewQuery(table).Where(`"id" = ?`, id)
	if err := d.beforeRead(ctx, q); err != nil {
		return err
	}

	query, args := buildUpdate(table, cols, q)

	var r T
	err = d.q(ctx).GetContext(ctx, &r, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.Wrap(ErrNotFound, errors.WithCause(err))
		}
		return wrapExecErr(err)
	}
	*row = r
	return nil
}

// Delete removes the rows matching the query.  Deletes select rows the same
// way reads do, so the chain scopes them identically.
func Delete(ctx context.Context, d *Db, q *tenantscope.Query) error {
	if err := d.beforeRead(ctx, q); err != nil {
		return err
	}
	query, args := q.DeleteSQL()
	_, err := d.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if isInvalidForeignKey(err) {
			return errors.Wrap(ErrDeleteViolatesForeignKey, errors.WithCause(err))
		}
		return errors.Wrap(ErrDatabaseError, errors.WithCause(err))
	}
	return nil
}

func DeleteById(ctx context.Context, d *Db, table string, id string) error {
	return Delete(ctx, d, tenantscope.NewQuery(table).Where(`"id" = ?`, id))
}

// immutableFields lists the tenant columns owned by the chain.  They are set
// once, on create, and never rewritten.
func (d *Db) immutableFields() []string {
	var fields []string
	for _, ic := range d.chain {
		if scope, ok := ic.(*tenantscope.TenantScope); ok {
			fields = append(fields, scope.TenantField())
		}
	}
	if len(fields) == 0 {
		fields = append(fields, tenantscope.DefaultTenantField)
	}
	return fields
}

func buildInsert(table string, cols columns.Columns) (string, []any) {
	query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s) RETURNING *`,
		table, cols.List(), cols.Placeholders())
	return sqlx.Rebind(sqlx.DOLLAR, query), cols.Values()
}

func buildUpdate(table string, cols columns.Columns, q *tenantscope.Query) (string, []any) {
	exprs := make([]string, 0, len(q.Predicates()))
	args := cols.Values()
	for _, p := range q.Predicates() {
		exprs = append(exprs, "("+p.Expr+")")
		args = append(args, p.Args...)
	}
	query := fmt.Sprintf(`UPDATE "%s" SET (%s) = (%s) WHERE %s RETURNING *`,
		table, cols.List(), cols.Placeholders(), strings.Join(exprs, " AND "))
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func queryOne[T any](ctx context.Context, db queryer, query string, args ...interface{}) (*T, error) {
	var val T
	err := db.GetContext(ctx, &val, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrap(ErrNotFound, errors.WithCause(err))
		}
		return nil, errors.Wrap(ErrDatabaseError, errors.WithCause(err))
	}
	return &val, nil
}

func queryMany[T any](ctx context.Context, db queryer, query string, args ...interface{}) ([]*T, error) {
	var val []*T
	err := db.SelectContext(ctx, &val, query, args...)
	if err != nil {
		return nil, errors.Wrap(ErrDatabaseError, errors.WithCause(err))
	}
	return val, nil
}
