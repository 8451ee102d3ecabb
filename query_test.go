package tenantscope_test

import (
	"testing"

	"github.com/jswidler/tenantscope"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestSelectSQLNoPredicates(t *testing.T) {
	query, args := tenantscope.NewQuery("notes").SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes"`, query)
	assert.Nil(t, args)
}

func TestSelectSQLConjoinsPredicates(t *testing.T) {
	q := tenantscope.NewQuery("notes").
		Where(`"name" = ?`, "Acme").
		Where(`"created_at" >= ? AND "created_at" < ?`, "2026-01-01", "2026-02-01")

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("name" = $1) AND ("created_at" >= $2 AND "created_at" < $3)`, query)
	assert.Equal(t, []any{"Acme", "2026-01-01", "2026-02-01"}, args)
}

func TestSelectSQLOrderAndLimit(t *testing.T) {
	q := tenantscope.NewQuery("notes").
		Where(`"name" = ?`, "Acme").
		OrderBy(`"created_at" DESC`).
		Limit(10)

	query, _ := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("name" = $1) ORDER BY "created_at" DESC LIMIT 10`, query)
}

func TestWhereIn(t *testing.T) {
	q := tenantscope.NewQuery("notes").WhereIn("id", []string{"a", "b"})

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("id" = ANY($1))`, query)
	assert.Equal(t, []any{pq.StringArray{"a", "b"}}, args)
}

func TestDeleteSQL(t *testing.T) {
	q := tenantscope.NewQuery("notes").Where(`"id" = ?`, "a")

	query, args := q.DeleteSQL()
	assert.Equal(t, `DELETE FROM "notes" WHERE ("id" = $1)`, query)
	assert.Equal(t, []any{"a"}, args)
}

func TestPredicatesPreserved(t *testing.T) {
	q := tenantscope.NewQuery("notes").Where(`"name" = ?`, "Acme")
	q.Where(`"tenant_id" = ?`, "7")

	preds := q.Predicates()
	assert.Len(t, preds, 2)
	assert.Equal(t, `"name" = ?`, preds[0].Expr)
	assert.Equal(t, `"tenant_id" = ?`, preds[1].Expr)
}
