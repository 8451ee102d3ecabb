// Package tenantscope enforces tenant isolation for a single-database
// multi-tenant application at two interception points: records gain the
// caller's tenant id when they are created, and reads gain a tenant predicate
// before they execute.  Call sites never pass a tenant id themselves; the
// tenant travels in the context (see the tenantctx package) and the
// interceptor chain is installed once, when the data access layer is built.
package tenantscope

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/tenantctx"
	"github.com/lib/pq"
)

var (
	// ErrUnauthorizedWrite is returned when a record is created without a
	// single tenant in the context.  The write must be aborted; proceeding
	// would store a record no tenant owns.
	ErrUnauthorizedWrite = errors.Sentinel("unauthorized write: no tenant in context")

	// ErrNoTenantField is returned when a record type has no column to hold
	// the tenant id.  Storing it would silently escape tenant isolation.
	ErrNoTenantField = errors.Sentinel("record has no tenant column")
)

// DefaultTenantField is the column assumed to hold the tenant id unless
// WithTenantField says otherwise.
const DefaultTenantField = "tenant_id"

// Interceptor hooks into the data access layer.  BeforeCreate runs once per
// insert, before the row is written; BeforeRead runs once per select or
// delete, before the query is rendered.  Interceptors run in the order they
// were registered, and the first error aborts the operation.
type Interceptor interface {
	BeforeCreate(ctx context.Context, record any) error
	BeforeRead(ctx context.Context, q *Query) error
}

// TenantScope is the tenant isolation Interceptor.
//
// On create it overwrites the record's tenant column with the tenant from the
// context, discarding whatever the caller put there, and fails the write when
// the context does not name exactly one tenant.
//
// On read it conjoins an equality predicate on the tenant column (or a
// set-membership predicate when the context carries an allow-list of several
// tenants).  A context with no tenant reads unscoped; that mode is reserved
// for system work and requires the absence of a tenant, not an opt-out flag.
type TenantScope struct {
	field string
}

type Option func(*TenantScope)

// WithTenantField names the column that holds the tenant id.
func WithTenantField(name string) Option {
	return func(s *TenantScope) {
		s.field = name
	}
}

func New(opts ...Option) *TenantScope {
	s := &TenantScope{field: DefaultTenantField}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TenantField returns the configured tenant column name.
func (s *TenantScope) TenantField() string {
	return s.field
}

func (s *TenantScope) BeforeCreate(ctx context.Context, record any) error {
	tenantId, ok := tenantctx.Tenant(ctx)
	if !ok {
		return errors.Wrap(ErrUnauthorizedWrite)
	}
	return stampTenant(record, s.field, tenantId)
}

func (s *TenantScope) BeforeRead(ctx context.Context, q *Query) error {
	tenants := tenantctx.Tenants(ctx)
	switch len(tenants) {
	case 0:
		// Unscoped read for system callers.
	case 1:
		q.Where(fmt.Sprintf(`"%s" = ?`, s.field), tenants[0])
	default:
		q.Where(fmt.Sprintf(`"%s" = ANY(?)`, s.field), pq.StringArray(tenants))
	}
	return nil
}

// stampTenant sets the struct field tagged db:"<column>" to tenantId.  The
// field may be a string or a pointer to one.
func stampTenant(record any, column, tenantId string) error {
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errors.Newf("record must be a pointer to a struct, got %T", record)
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("db") != column {
			continue
		}
		f := v.Field(i)
		switch {
		case f.Kind() == reflect.String:
			f.SetString(tenantId)
		case f.Kind() == reflect.Ptr && f.Type().Elem().Kind() == reflect.String:
			p := reflect.New(f.Type().Elem())
			p.Elem().SetString(tenantId)
			f.Set(p)
		default:
			return errors.Newf(`tenant column "%s" on %s must be a string, got %s`, column, t.Name(), f.Type())
		}
		return nil
	}
	return errors.Wrap(ErrNoTenantField, errors.WithMessagef(`%s has no field tagged db:"%s"`, t.Name(), column))
}
