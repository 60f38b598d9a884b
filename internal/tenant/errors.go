package tenant

import "errors"

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrDuplicateTenant   = errors.New("tenant with this subdomain already exists")
	ErrForbidden         = errors.New("forbidden")
	ErrNameRequired      = errors.New("tenant name is required")
	ErrInvalidSubdomain  = errors.New("subdomain must be lowercase letters, digits or hyphens")
	ErrInvalidTenantType = errors.New("tenant_type must be institution or simulation")
	ErrInvalidStatus     = errors.New("status must be active or suspended")
	ErrParentRequired    = errors.New("simulation tenants require an institution parent")
	ErrInvalidParent     = errors.New("parent tenant must be an existing institution")
	ErrNoFieldsToUpdate  = errors.New("no fields to update")
)
