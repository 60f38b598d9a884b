package access

import (
	"context"
	"errors"
	"strings"

	"github.com/haccare/emr-service/internal/auth"
)

// Checker evaluates the tenant access rules for a principal.
type Checker struct {
	memberships MembershipStore
	directory   Directory
}

func NewChecker(memberships MembershipStore, directory Directory) *Checker {
	return &Checker{memberships: memberships, directory: directory}
}

func (c *Checker) activeMemberships(ctx context.Context, p *auth.Principal) ([]Membership, error) {
	all, err := c.memberships.ListMemberships(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, m := range all {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

// HasTenantAccess is true for super admins and active members of tenantID.
func (c *Checker) HasTenantAccess(ctx context.Context, p *auth.Principal, tenantID string) (bool, error) {
	if p == nil || tenantID == "" {
		return false, nil
	}
	if CurrentUserIsSuperAdmin(p) {
		return true, nil
	}
	ms, err := c.activeMemberships(ctx, p)
	if err != nil {
		return false, err
	}
	for _, m := range ms {
		if m.TenantID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

// HasSimulationTenantAccess requires tenantID to be a live simulation tenant
// and the caller to be a super admin, one of its members, or an ADMIN or
// INSTRUCTOR of the parent institution.
func (c *Checker) HasSimulationTenantAccess(ctx context.Context, p *auth.Principal, tenantID string) (bool, error) {
	ok, _, err := c.simulationAccess(ctx, p, tenantID)
	return ok, err
}

// simulationAccess also returns the parent-tenant role that granted access,
// if any.
func (c *Checker) simulationAccess(ctx context.Context, p *auth.Principal, tenantID string) (bool, string, error) {
	if p == nil || tenantID == "" {
		return false, "", nil
	}
	t, err := c.directory.GetTenant(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if !t.IsSimulation() {
		return false, "", nil
	}
	if CurrentUserIsSuperAdmin(p) {
		return true, "", nil
	}

	ms, err := c.activeMemberships(ctx, p)
	if err != nil {
		return false, "", err
	}
	for _, m := range ms {
		if m.TenantID == t.ID {
			return true, "", nil
		}
	}
	for _, m := range ms {
		if m.TenantID == t.ParentID && (m.Role == auth.RoleAdmin || m.Role == auth.RoleInstructor) {
			return true, m.Role, nil
		}
	}
	return false, "", nil
}

// UserHasPatientAccess is true when the patient exists and the caller can
// reach its tenant through either predicate.
func (c *Checker) UserHasPatientAccess(ctx context.Context, p *auth.Principal, patientID string) (bool, error) {
	if p == nil || patientID == "" {
		return false, nil
	}
	tenantID, err := c.directory.GetPatientTenant(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ok, err := c.HasTenantAccess(ctx, p, tenantID); err != nil || ok {
		return ok, err
	}
	return c.HasSimulationTenantAccess(ctx, p, tenantID)
}

// ResolveTenant picks the requested tenant, or the token's tenant when none
// was requested, and checks the caller may act in it.
func (c *Checker) ResolveTenant(ctx context.Context, p *auth.Principal, requested string) (string, error) {
	s, err := c.Resolve(ctx, p, requested)
	if err != nil {
		return "", err
	}
	return s.TenantID, nil
}

// Resolve is ResolveTenant returning the full Scope.
func (c *Checker) Resolve(ctx context.Context, p *auth.Principal, requested string) (*Scope, error) {
	if p == nil {
		return nil, ErrForbidden
	}
	tenantID := strings.TrimSpace(requested)
	if tenantID == "" {
		tenantID = p.TenantID
	}
	if tenantID == "" {
		return nil, ErrNoTenant
	}

	// Token roles are realm wide and say nothing about this tenant. Only
	// SUPER_ADMIN carries across tenants; everything else comes from
	// membership.
	scope := &Scope{
		UserID:     p.UserID,
		TenantID:   tenantID,
		SuperAdmin: CurrentUserIsSuperAdmin(p),
	}
	if scope.SuperAdmin {
		scope.Roles = []string{auth.RoleSuperAdmin}
	}

	member, err := c.membershipIn(ctx, p, tenantID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		scope.Roles = appendRole(scope.Roles, member.Role)
		scope.Simulation = member.TenantType == TenantTypeSimulation
		return scope, nil
	}

	simOK, parentRole, err := c.simulationAccess(ctx, p, tenantID)
	if err != nil {
		return nil, err
	}
	if simOK {
		scope.Simulation = true
		scope.Roles = appendRole(scope.Roles, parentRole)
		return scope, nil
	}

	if scope.SuperAdmin {
		if _, err := c.directory.GetTenant(ctx, tenantID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrForbidden
			}
			return nil, err
		}
		return scope, nil
	}
	return nil, ErrForbidden
}

func (c *Checker) membershipIn(ctx context.Context, p *auth.Principal, tenantID string) (*Membership, error) {
	ms, err := c.activeMemberships(ctx, p)
	if err != nil {
		return nil, err
	}
	for i := range ms {
		if ms[i].TenantID == tenantID {
			return &ms[i], nil
		}
	}
	return nil, nil
}

func appendRole(roles []string, role string) []string {
	if role == "" {
		return roles
	}
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return roles
		}
	}
	return append(roles, role)
}
