package users

import (
	"context"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/pagination"
)

// ServiceInterface defines the contract for user and membership operations
type ServiceInterface interface {
	AssignUserToTenant(ctx context.Context, principal *auth.Principal, req AssignUserRequest) (*Membership, error)
	RemoveMember(ctx context.Context, scope access.Scope, userID string) error
	ListMembers(ctx context.Context, scope access.Scope, params pagination.Params) (*PaginatedMemberListResponse, error)
	GetMyProfile(ctx context.Context, principal *auth.Principal) (*UserProfile, error)
	UpdateMyProfile(ctx context.Context, principal *auth.Principal, req UpdateProfileRequest) (*UserProfile, error)
	ListMyTenants(ctx context.Context, principal *auth.Principal) ([]UserTenant, error)
}
