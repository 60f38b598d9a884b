package tenant

import (
	"time"

	"github.com/haccare/emr-service/internal/pagination"
)

const (
	TypeInstitution = "institution"
	TypeSimulation  = "simulation"

	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Tenant is an institution or a simulation running under one.
type Tenant struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Subdomain      string                 `json:"subdomain"`
	TenantType     string                 `json:"tenant_type"`
	ParentTenantID *string                `json:"parent_tenant_id,omitempty"`
	Status         string                 `json:"status"`
	Settings       map[string]interface{} `json:"settings,omitempty"`
	RunNumber      int                    `json:"run_number"`
	LastResetAt    *time.Time             `json:"last_reset_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	DeletedAt      *time.Time             `json:"deleted_at,omitempty"`
}

func (t *Tenant) IsSimulation() bool {
	return t != nil && t.TenantType == TypeSimulation
}

type CreateTenantRequest struct {
	Name           string                 `json:"name"`
	Subdomain      string                 `json:"subdomain"`
	TenantType     string                 `json:"tenant_type"`
	ParentTenantID string                 `json:"parent_tenant_id,omitempty"`
	Settings       map[string]interface{} `json:"settings,omitempty"`
}

// UpdateTenantRequest holds the fields that may change; nil means unchanged.
type UpdateTenantRequest struct {
	Name     *string                `json:"name,omitempty"`
	Status   *string                `json:"status,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

type ListFilter struct {
	Search string
	Status string
	Type   string
}

type PaginatedListResponse struct {
	Success    bool            `json:"success"`
	Tenants    []Tenant        `json:"tenants"`
	Pagination pagination.Meta `json:"pagination"`
}
