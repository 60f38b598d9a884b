package tenant

import (
	"context"

	"github.com/haccare/emr-service/internal/db"
)

// RepositoryInterface defines the contract for tenant data access
type RepositoryInterface interface {
	CreateTenant(ctx context.Context, sess db.Session, req CreateTenantRequest) (*Tenant, error)
	ListTenants(ctx context.Context, sess db.Session, limit, offset int, filter ListFilter) ([]Tenant, int, error)
	GetTenant(ctx context.Context, sess db.Session, id string) (*Tenant, error)
	UpdateTenant(ctx context.Context, sess db.Session, id string, req UpdateTenantRequest) (*Tenant, error)
	DeleteTenant(ctx context.Context, sess db.Session, id string) ([]string, error)
	ListActiveTenantIDs(ctx context.Context) ([]string, error)
}

var _ RepositoryInterface = (*Repository)(nil)
