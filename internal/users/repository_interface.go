package users

import (
	"context"

	"github.com/haccare/emr-service/internal/db"
)

// RepositoryInterface defines the contract for profile and membership data access
type RepositoryInterface interface {
	EnsureProfile(ctx context.Context, sess db.Session, p UserProfile) (*UserProfile, error)
	UpdateProfile(ctx context.Context, sess db.Session, userID string, req UpdateProfileRequest) (*UserProfile, error)
	AssignMembership(ctx context.Context, sess db.Session, req AssignUserRequest) (*Membership, error)
	RemoveMembership(ctx context.Context, sess db.Session, tenantID, userID string) error
	ListMembers(ctx context.Context, sess db.Session, tenantID string, limit, offset int, search string) ([]Member, int, error)
	ListUserTenants(ctx context.Context, sess db.Session, userID string) ([]UserTenant, error)
}

var _ RepositoryInterface = (*Repository)(nil)
