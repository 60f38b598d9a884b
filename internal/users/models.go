package users

import (
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/pagination"
)

// UserProfile mirrors an identity-provider account inside the EMR.
type UserProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Membership links a user to a tenant with a tenant role.
type Membership struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a membership joined with the user's profile.
type Member struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	JoinedAt  time.Time `json:"joined_at"`
}

// UserTenant is one entry of "my tenants".
type UserTenant struct {
	TenantID       string  `json:"tenant_id"`
	Name           string  `json:"name"`
	Subdomain      string  `json:"subdomain"`
	TenantType     string  `json:"tenant_type"`
	ParentTenantID *string `json:"parent_tenant_id,omitempty"`
	Role           string  `json:"role"`
	IsActive       bool    `json:"is_active"`
}

// AssignUserRequest is the body of the assign_user_to_tenant RPC.
type AssignUserRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

func (r *AssignUserRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))

	if r.UserID == "" {
		return ErrMissingUserID
	}
	if r.TenantID == "" {
		return ErrMissingTenantID
	}
	if !auth.TenantRoles[r.Role] {
		return ErrInvalidRole
	}
	return nil
}

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type PaginatedMemberListResponse struct {
	Success    bool            `json:"success"`
	Members    []Member        `json:"members"`
	Pagination pagination.Meta `json:"pagination"`
}
