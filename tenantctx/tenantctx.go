// Package tenantctx carries the caller's tenant through a context.Context.
//
// A context holds either no tenant (unscoped, reserved for trusted system
// work), exactly one tenant (the normal authenticated request), or an
// allow-list of several tenants (a caller permitted to read across tenants).
// The tenant set is established once, at the edge that authenticates the
// request, and is read-only afterwards.
package tenantctx

import "context"

type tenantKeyType int

const tenantKey tenantKeyType = iota

// WithTenant returns a context scoped to a single tenant.
func WithTenant(ctx context.Context, tenantId string) context.Context {
	return WithTenants(ctx, tenantId)
}

// WithTenants returns a context carrying an allow-list of tenants.  Empty and
// blank ids are dropped; if none remain the context is left unscoped.
func WithTenants(ctx context.Context, tenantIds ...string) context.Context {
	ids := make([]string, 0, len(tenantIds))
	for _, id := range tenantIds {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ctx
	}
	return context.WithValue(ctx, tenantKey, ids)
}

// Tenant returns the single tenant the context is scoped to.  ok is false
// when the context is unscoped or carries more than one tenant.
func Tenant(ctx context.Context) (tenantId string, ok bool) {
	ids := Tenants(ctx)
	if len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

// Tenants returns the tenant allow-list, or nil for an unscoped context.
func Tenants(ctx context.Context) []string {
	ids, _ := ctx.Value(tenantKey).([]string)
	return ids
}

// MustTenant is Tenant for call sites that have already guaranteed a
// single-tenant context.
func MustTenant(ctx context.Context) string {
	tenantId, ok := Tenant(ctx)
	if !ok {
		panic("no single tenant in context")
	}
	return tenantId
}
