// Package access decides which tenant a request acts in and whether the
// caller may touch a tenant, a simulation tenant or a patient. The checks
// mirror the SQL helpers installed by the migrations so handlers can return
// 403 before the row-level security policies silently filter a query.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/db"
)

var (
	ErrNoTenant     = errors.New("no tenant selected")
	ErrForbidden    = errors.New("access to tenant denied")
	ErrNotFound     = errors.New("not found")
	ErrPolicyDenied = errors.New("row policy denied")
)

// TenantHeader selects the tenant for a request, overriding the token claim.
const TenantHeader = "X-Tenant-ID"

// Scope is the resolved identity of a request inside one tenant.
type Scope struct {
	UserID     string
	TenantID   string
	SuperAdmin bool
	// Roles holds the membership role in TenantID, or the parent-tenant role
	// that granted simulation access. SUPER_ADMIN is the only token role kept.
	Roles      []string
	Simulation bool
}

func (s Scope) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the scope is a super admin or carries one of roles.
func (s Scope) HasAnyRole(roles ...string) bool {
	if s.SuperAdmin {
		return true
	}
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// Session is the database identity the row-level security policies see.
func (s Scope) Session() db.Session {
	return db.Session{UserID: s.UserID, TenantID: s.TenantID, SuperAdmin: s.SuperAdmin}
}

// CurrentUserIsSuperAdmin is true when SUPER_ADMIN is among the token roles.
func CurrentUserIsSuperAdmin(p *auth.Principal) bool {
	return p.HasRole(auth.RoleSuperAdmin)
}

type ctxKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}
