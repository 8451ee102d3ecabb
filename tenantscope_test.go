package tenantscope_test

import (
	"context"
	"testing"

	"github.com/jswidler/tenantscope"
	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/tenantctx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Id       string  `db:"id"`
	TenantId string  `db:"tenant_id"`
	Name     string  `db:"name"`
	Internal string  `db:"-"`
	Owner    *string `db:"owner_id"`
}

type orphan struct {
	Id   string `db:"id"`
	Name string `db:"name"`
}

func TestBeforeCreateStampsTenant(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	rec := note{Name: "Acme"}

	err := tenantscope.New().BeforeCreate(ctx, &rec)
	require.NoError(t, err)
	assert.Equal(t, "7", rec.TenantId)
}

func TestBeforeCreateOverridesForgedTenant(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	rec := note{Name: "Acme", TenantId: "999"}

	err := tenantscope.New().BeforeCreate(ctx, &rec)
	require.NoError(t, err)
	assert.Equal(t, "7", rec.TenantId)
}

func TestBeforeCreateWithoutTenantFails(t *testing.T) {
	rec := note{Name: "Acme", TenantId: "999"}

	err := tenantscope.New().BeforeCreate(context.Background(), &rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tenantscope.ErrUnauthorizedWrite))
	// The record is untouched when the write is refused.
	assert.Equal(t, "999", rec.TenantId)
}

func TestBeforeCreateWithAllowListFails(t *testing.T) {
	// An allow-list grants cross-tenant reads, not writes: there is no single
	// tenant to stamp on the new record.
	ctx := tenantctx.WithTenants(context.Background(), "7", "8")

	err := tenantscope.New().BeforeCreate(ctx, &note{Name: "Acme"})
	assert.True(t, errors.Is(err, tenantscope.ErrUnauthorizedWrite))
}

func TestBeforeCreatePointerField(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	scope := tenantscope.New(tenantscope.WithTenantField("owner_id"))

	rec := note{Name: "Acme"}
	err := scope.BeforeCreate(ctx, &rec)
	require.NoError(t, err)
	require.NotNil(t, rec.Owner)
	assert.Equal(t, "7", *rec.Owner)
}

func TestBeforeCreateMissingTenantColumn(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")

	err := tenantscope.New().BeforeCreate(ctx, &orphan{Name: "Acme"})
	assert.True(t, errors.Is(err, tenantscope.ErrNoTenantField))
}

func TestBeforeCreateRequiresStructPointer(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")

	assert.Error(t, tenantscope.New().BeforeCreate(ctx, note{Name: "Acme"}))
	assert.Error(t, tenantscope.New().BeforeCreate(ctx, "not a record"))
}

func TestBeforeReadAddsTenantPredicate(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	q := tenantscope.NewQuery("notes").Where(`"name" = ?`, "Acme")

	err := tenantscope.New().BeforeRead(ctx, q)
	require.NoError(t, err)

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("name" = $1) AND ("tenant_id" = $2)`, query)
	assert.Equal(t, []any{"Acme", "7"}, args)
}

func TestBeforeReadUnfilteredQuery(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	q := tenantscope.NewQuery("notes")

	require.NoError(t, tenantscope.New().BeforeRead(ctx, q))

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("tenant_id" = $1)`, query)
	assert.Equal(t, []any{"7"}, args)
}

func TestBeforeReadWithoutTenantIsPassThrough(t *testing.T) {
	q := tenantscope.NewQuery("notes").Where(`"name" = ?`, "Acme")

	require.NoError(t, tenantscope.New().BeforeRead(context.Background(), q))

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("name" = $1)`, query)
	assert.Equal(t, []any{"Acme"}, args)
}

func TestBeforeReadAllowList(t *testing.T) {
	ctx := tenantctx.WithTenants(context.Background(), "7", "8")
	q := tenantscope.NewQuery("notes")

	require.NoError(t, tenantscope.New().BeforeRead(ctx, q))

	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("tenant_id" = ANY($1))`, query)
	assert.Equal(t, []any{pq.StringArray{"7", "8"}}, args)
}

func TestBeforeReadIdempotent(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	scope := tenantscope.New()

	q := tenantscope.NewQuery("notes")
	require.NoError(t, scope.BeforeRead(ctx, q))
	require.NoError(t, scope.BeforeRead(ctx, q))

	// The repeated conjunct is redundant but semantically equivalent.
	query, args := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("tenant_id" = $1) AND ("tenant_id" = $2)`, query)
	assert.Equal(t, []any{"7", "7"}, args)
}

func TestCustomTenantField(t *testing.T) {
	ctx := tenantctx.WithTenant(context.Background(), "7")
	scope := tenantscope.New(tenantscope.WithTenantField("org_id"))
	q := tenantscope.NewQuery("notes")

	require.NoError(t, scope.BeforeRead(ctx, q))

	query, _ := q.SelectSQL()
	assert.Equal(t, `SELECT * FROM "notes" WHERE ("org_id" = $1)`, query)
}
