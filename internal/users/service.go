package users

import (
	"context"
	"errors"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/pagination"
	"github.com/rs/zerolog/log"
)

// MembershipInvalidator drops cached memberships after they change.
type MembershipInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type MetricsRecorder interface {
	RecordUserOperation(ctx context.Context, operation string)
}

type Service struct {
	repo      RepositoryInterface
	policy    access.Authorizer
	publisher messaging.PublisherInterface
	cache     MembershipInvalidator
	metrics   MetricsRecorder
}

var _ ServiceInterface = (*Service)(nil)

// NewService wires the user service. publisher and cache may be nil.
func NewService(repo RepositoryInterface, policy access.Authorizer, publisher messaging.PublisherInterface, cache MembershipInvalidator) *Service {
	return &Service{repo: repo, policy: policy, publisher: publisher, cache: cache}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordUserOperation(ctx, op)
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate membership cache")
	}
}

func sessionFor(p *auth.Principal) db.Session {
	return db.Session{UserID: p.UserID, SuperAdmin: access.CurrentUserIsSuperAdmin(p)}
}

// AssignUserToTenant grants userID a role in a tenant. Only super admins may
// call it.
func (s *Service) AssignUserToTenant(ctx context.Context, principal *auth.Principal, req AssignUserRequest) (*Membership, error) {
	if principal == nil || !access.CurrentUserIsSuperAdmin(principal) {
		return nil, ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	scope := access.Scope{UserID: principal.UserID, SuperAdmin: true, Roles: principal.Roles}
	row := map[string]any{"user_id": req.UserID, "tenant_id": req.TenantID, "role": req.Role}
	if err := s.policy.Authorize("tenant_users", "insert", scope, row); err != nil {
		return nil, ErrForbidden
	}

	m, err := s.repo.AssignMembership(ctx, scope.Session(), req)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, m.UserID)
	s.record(ctx, "assign")

	log.Info().
		Str("user_id", m.UserID).
		Str("tenant_id", m.TenantID).
		Str("role", m.Role).
		Str("assigned_by", principal.UserID).
		Msg("user assigned to tenant")

	if s.publisher != nil {
		event := messaging.UserAssignedEvent{
			BaseEvent: messaging.NewBaseEvent(messaging.EventUserAssignedToTenant, m.TenantID),
			Data: messaging.UserAssignedData{
				UserID:     m.UserID,
				Role:       m.Role,
				AssignedBy: principal.UserID,
				AssignedAt: time.Now().UTC(),
			},
		}
		if err := s.publisher.Publish(ctx, messaging.EventUserAssignedToTenant, event); err != nil {
			log.Warn().Err(err).Str("user_id", m.UserID).Msg("failed to publish user.assigned_to_tenant event")
		}
	}
	return m, nil
}

// RemoveMember drops userID from the scope's tenant. Super admins and tenant
// admins may do this.
func (s *Service) RemoveMember(ctx context.Context, scope access.Scope, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	row := map[string]any{"user_id": userID, "tenant_id": scope.TenantID}
	if err := s.policy.Authorize("tenant_users", "delete", scope, row); err != nil {
		return ErrForbidden
	}

	if err := s.repo.RemoveMembership(ctx, scope.Session(), scope.TenantID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.record(ctx, "remove")
	return nil
}

func (s *Service) ListMembers(ctx context.Context, scope access.Scope, params pagination.Params) (*PaginatedMemberListResponse, error) {
	params.Validate()

	members, total, err := s.repo.ListMembers(ctx, scope.Session(), scope.TenantID,
		params.Limit, params.CalculateOffset(), params.Search)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []Member{}
	}

	return &PaginatedMemberListResponse{
		Success:    true,
		Members:    members,
		Pagination: params.CalculateMeta(total),
	}, nil
}

// GetMyProfile returns the caller's profile, creating it from the token
// claims the first time.
func (s *Service) GetMyProfile(ctx context.Context, principal *auth.Principal) (*UserProfile, error) {
	if principal == nil {
		return nil, ErrForbidden
	}
	return s.repo.EnsureProfile(ctx, sessionFor(principal), profileFromPrincipal(principal))
}

func (s *Service) UpdateMyProfile(ctx context.Context, principal *auth.Principal, req UpdateProfileRequest) (*UserProfile, error) {
	if principal == nil {
		return nil, ErrForbidden
	}
	if req.FirstName == nil && req.LastName == nil {
		return nil, ErrNoFieldsToUpdate
	}

	sess := sessionFor(principal)
	if _, err := s.repo.EnsureProfile(ctx, sess, profileFromPrincipal(principal)); err != nil {
		return nil, err
	}
	p, err := s.repo.UpdateProfile(ctx, sess, principal.UserID, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "update_profile")
	return p, nil
}

func (s *Service) ListMyTenants(ctx context.Context, principal *auth.Principal) ([]UserTenant, error) {
	if principal == nil {
		return nil, ErrForbidden
	}
	tenants, err := s.repo.ListUserTenants(ctx, sessionFor(principal), principal.UserID)
	if err != nil {
		return nil, err
	}
	if tenants == nil {
		tenants = []UserTenant{}
	}
	return tenants, nil
}

// profileFromPrincipal builds the initial profile for a first login.
func profileFromPrincipal(p *auth.Principal) UserProfile {
	email := p.Email
	if email == "" {
		email = p.UserID
	}
	first, _ := p.Claims["given_name"].(string)
	last, _ := p.Claims["family_name"].(string)

	return UserProfile{
		ID:        p.UserID,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      profileRole(p),
	}
}

// profileRole picks the most privileged known role on the token.
func profileRole(p *auth.Principal) string {
	for _, r := range []string{auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleInstructor, auth.RoleNurse, auth.RoleStudent} {
		if p.HasRole(r) {
			return r
		}
	}
	return auth.RoleNurse
}

// IsNotFound reports whether err is one of the package's lookup failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrMembershipNotFound)
}
