// Package tenant carries the acting tenant through a request's context.
// Commands still transport explicit tenant and user IDs; the ambient value
// exists for boundary concerns such as projection isolation and log enrichment.
package tenant

import "context"

// Tenant identifies the organization a request acts on behalf of.
type Tenant struct {
	ID   string
	Name string
}

// contextKey is a private type to prevent context key collisions.
type contextKey string

// tenantKey is the context key used to store the acting tenant.
const tenantKey contextKey = "vmgate.tenant"

// WithTenant returns a context carrying the acting tenant.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// FromContext extracts the acting tenant from the context.
// The second return value is false when no tenant was set.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(Tenant)

	return t, ok
}
