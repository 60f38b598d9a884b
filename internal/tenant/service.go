package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/pagination"
	"github.com/rs/zerolog/log"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

type MetricsRecorder interface {
	RecordTenantOperation(ctx context.Context, operation string)
}

// MembershipInvalidator drops cached memberships after they change.
type MembershipInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Service struct {
	repo    RepositoryInterface
	metrics MetricsRecorder
	cache   MembershipInvalidator
}

func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// WithInvalidator makes DeleteTenant evict the cached memberships of the
// tenant's members, so they lose access immediately.
func (s *Service) WithInvalidator(c MembershipInvalidator) *Service {
	s.cache = c
	return s
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordTenantOperation(ctx, op)
	}
}

func sessionFor(p *auth.Principal) db.Session {
	return db.Session{UserID: p.UserID, SuperAdmin: access.CurrentUserIsSuperAdmin(p)}
}

func (s *Service) CreateTenant(ctx context.Context, principal *auth.Principal, req CreateTenantRequest) (*Tenant, error) {
	if !access.CurrentUserIsSuperAdmin(principal) {
		return nil, ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	if !subdomainPattern.MatchString(req.Subdomain) {
		return nil, ErrInvalidSubdomain
	}
	if req.TenantType == "" {
		req.TenantType = TypeInstitution
	}

	sess := sessionFor(principal)
	switch req.TenantType {
	case TypeInstitution:
		if req.ParentTenantID != "" {
			return nil, ErrInvalidParent
		}
	case TypeSimulation:
		if req.ParentTenantID == "" {
			return nil, ErrParentRequired
		}
		parent, err := s.repo.GetTenant(ctx, sess, req.ParentTenantID)
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrInvalidParent
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load parent tenant: %w", err)
		}
		if parent.TenantType != TypeInstitution {
			return nil, ErrInvalidParent
		}
	default:
		return nil, ErrInvalidTenantType
	}

	t, err := s.repo.CreateTenant(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "create")
	return t, nil
}

// ListTenants returns the tenants the caller can reach, paginated.
func (s *Service) ListTenants(ctx context.Context, principal *auth.Principal, params pagination.Params, filter ListFilter) (*PaginatedListResponse, error) {
	params.Validate()
	if params.Search != "" {
		filter.Search = params.Search
	}

	tenants, total, err := s.repo.ListTenants(ctx, sessionFor(principal), params.Limit, params.CalculateOffset(), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	if tenants == nil {
		tenants = []Tenant{}
	}

	return &PaginatedListResponse{
		Success:    true,
		Tenants:    tenants,
		Pagination: params.CalculateMeta(total),
	}, nil
}

func (s *Service) GetTenant(ctx context.Context, principal *auth.Principal, id string) (*Tenant, error) {
	return s.repo.GetTenant(ctx, sessionFor(principal), id)
}

func (s *Service) UpdateTenant(ctx context.Context, principal *auth.Principal, id string, req UpdateTenantRequest) (*Tenant, error) {
	if !access.CurrentUserIsSuperAdmin(principal) {
		return nil, ErrForbidden
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, ErrNameRequired
		}
		req.Name = &trimmed
	}
	if req.Status != nil && *req.Status != StatusActive && *req.Status != StatusSuspended {
		return nil, ErrInvalidStatus
	}
	t, err := s.repo.UpdateTenant(ctx, sessionFor(principal), id, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "update")
	return t, nil
}

func (s *Service) DeleteTenant(ctx context.Context, principal *auth.Principal, id string) error {
	if !access.CurrentUserIsSuperAdmin(principal) {
		return ErrForbidden
	}
	members, err := s.repo.DeleteTenant(ctx, sessionFor(principal), id)
	if err != nil {
		return err
	}
	if s.cache != nil {
		for _, userID := range members {
			if err := s.cache.Invalidate(ctx, userID); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Str("tenant_id", id).Msg("failed to invalidate membership cache")
			}
		}
	}
	s.record(ctx, "delete")
	return nil
}
