package tenant

import (
	"context"

	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/pagination"
)

// ServiceInterface defines the contract for tenant business logic
type ServiceInterface interface {
	CreateTenant(ctx context.Context, principal *auth.Principal, req CreateTenantRequest) (*Tenant, error)
	ListTenants(ctx context.Context, principal *auth.Principal, params pagination.Params, filter ListFilter) (*PaginatedListResponse, error)
	GetTenant(ctx context.Context, principal *auth.Principal, id string) (*Tenant, error)
	UpdateTenant(ctx context.Context, principal *auth.Principal, id string, req UpdateTenantRequest) (*Tenant, error)
	DeleteTenant(ctx context.Context, principal *auth.Principal, id string) error
}

var _ ServiceInterface = (*Service)(nil)
