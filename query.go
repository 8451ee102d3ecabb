package tenantscope

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Predicate is one conjunct of a query's WHERE clause.  Expr uses ? bindvars;
// they are rebound to postgres placeholders when the query is rendered.
type Predicate struct {
	Expr string
	Args []any
}

// Query describes a pending read (or delete) against one table as a set of
// conjoined predicates.  Interceptors may add predicates before the query is
// rendered to SQL; existing predicates are never replaced.
type Query struct {
	table   string
	preds   []Predicate
	orderBy string
	limit   int
}

func NewQuery(table string) *Query {
	return &Query{table: table}
}

func (q *Query) Table() string {
	return q.table
}

// Where conjoins a predicate.  expr is a SQL fragment using ? bindvars.
func (q *Query) Where(expr string, args ...any) *Query {
	q.preds = append(q.preds, Predicate{Expr: expr, Args: args})
	return q
}

// WhereIn conjoins a set-membership predicate on a column.
func (q *Query) WhereIn(column string, values []string) *Query {
	return q.Where(fmt.Sprintf(`"%s" = ANY(?)`, column), pq.StringArray(values))
}

func (q *Query) OrderBy(expr string) *Query {
	q.orderBy = expr
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Predicates returns the current conjuncts in the order they were added.
func (q *Query) Predicates() []Predicate {
	return q.preds
}

// SelectSQL renders the query as a SELECT statement with $n placeholders.
func (q *Query) SelectSQL() (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM "%s"`, q.table)
	args := q.writeWhere(&b)
	if q.orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.orderBy)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), args
}

// CountSQL renders the query as a SELECT COUNT(*) statement with $n
// placeholders.  ORDER BY and LIMIT are ignored.
func (q *Query) CountSQL() (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT COUNT(*) FROM "%s"`, q.table)
	args := q.writeWhere(&b)
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), args
}

// DeleteSQL renders the query as a DELETE statement with $n placeholders.
func (q *Query) DeleteSQL() (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `DELETE FROM "%s"`, q.table)
	args := q.writeWhere(&b)
	return sqlx.Rebind(sqlx.DOLLAR, b.String()), args
}

func (q *Query) writeWhere(b *strings.Builder) []any {
	if len(q.preds) == 0 {
		return nil
	}
	var args []any
	exprs := make([]string, 0, len(q.preds))
	for _, p := range q.preds {
		exprs = append(exprs, "("+p.Expr+")")
		args = append(args, p.Args...)
	}
	fmt.Fprintf(b, " WHERE %s", strings.Join(exprs, " AND "))
	return args
}
