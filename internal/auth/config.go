package auth

import "time"

// Config holds token verification settings.
type Config struct {
	Issuer          string
	JWKSURL         string
	Audience        string
	RefreshInterval time.Duration
}

// Role names as they appear in tokens and permissions.yml.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleInstructor = "INSTRUCTOR"
	RoleNurse      = "NURSE"
	RoleStudent    = "STUDENT"
)

// TenantRoles are the roles a user can hold inside a single tenant.
var TenantRoles = map[string]bool{
	RoleAdmin:      true,
	RoleInstructor: true,
	RoleNurse:      true,
	RoleStudent:    true,
}
