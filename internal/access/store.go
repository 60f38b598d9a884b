package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haccare/emr-service/internal/db"
)

// Membership is one tenant_users row joined with its tenant.
type Membership struct {
	TenantID       string `json:"tenant_id"`
	Role           string `json:"role"`
	Active         bool   `json:"active"`
	TenantType     string `json:"tenant_type"`
	ParentTenantID string `json:"parent_tenant_id,omitempty"`
}

type TenantRef struct {
	ID       string
	Type     string
	ParentID string
	Status   string
}

const TenantTypeSimulation = "simulation"

func (t *TenantRef) IsSimulation() bool {
	return t != nil && t.Type == TenantTypeSimulation
}

// MembershipStore lists the live tenants a user belongs to.
type MembershipStore interface {
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
}

// Directory resolves tenants and patient ownership. Lookups return
// ErrNotFound for missing or soft-deleted rows.
type Directory interface {
	GetTenant(ctx context.Context, tenantID string) (*TenantRef, error)
	GetPatientTenant(ctx context.Context, patientID string) (string, error)
}

// systemSession is used for lookups that decide access and must therefore
// see rows the caller cannot yet see.
var systemSession = db.Session{SuperAdmin: true}

// PostgresMembershipStore reads memberships and tenant metadata from the
// primary database.
type PostgresMembershipStore struct {
	db *sql.DB
}

var (
	_ MembershipStore = (*PostgresMembershipStore)(nil)
	_ Directory       = (*PostgresMembershipStore)(nil)
)

func NewPostgresMembershipStore(conn *sql.DB) *PostgresMembershipStore {
	return &PostgresMembershipStore{db: conn}
}

func (s *PostgresMembershipStore) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT tu.tenant_id, tu.role, tu.is_active, t.tenant_type, COALESCE(t.parent_tenant_id::text, '')
		FROM tenant_users tu
		JOIN tenants t ON t.id = tu.tenant_id
		WHERE tu.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.name
	`
	var out []Membership
	err := db.WithSession(ctx, s.db, systemSession, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m Membership
			if err := rows.Scan(&m.TenantID, &m.Role, &m.Active, &m.TenantType, &m.ParentTenantID); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return out, nil
}

func (s *PostgresMembershipStore) GetTenant(ctx context.Context, tenantID string) (*TenantRef, error) {
	query := `
		SELECT id, tenant_type, COALESCE(parent_tenant_id::text, ''), status
		FROM tenants
		WHERE id = $1 AND deleted_at IS NULL
	`
	var t TenantRef
	err := db.WithSession(ctx, s.db, systemSession, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, query, tenantID).Scan(&t.ID, &t.Type, &t.ParentID, &t.Status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (s *PostgresMembershipStore) GetPatientTenant(ctx context.Context, patientID string) (string, error) {
	var tenantID string
	err := db.WithSession(ctx, s.db, systemSession, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`SELECT tenant_id FROM patients WHERE id = $1 AND deleted_at IS NULL`, patientID,
		).Scan(&tenantID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get patient tenant: %w", err)
	}
	return tenantID, nil
}
