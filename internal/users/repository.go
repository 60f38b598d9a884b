package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/haccare/emr-service/internal/db"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const profileColumns = `id, email, first_name, last_name, role, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*UserProfile, error) {
	var p UserProfile
	var updatedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Role, &p.IsActive, &p.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

// EnsureProfile creates the caller's profile on first sight and returns the
// stored row. An existing profile is never overwritten.
func (r *Repository) EnsureProfile(ctx context.Context, sess db.Session, p UserProfile) (*UserProfile, error) {
	var out *UserProfile
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_profiles (id, email, first_name, last_name, role)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Email, p.FirstName, p.LastName, p.Role); err != nil {
			return err
		}

		var err error
		out, err = scanProfile(tx.QueryRowContext(ctx,
			`SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, p.ID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, sess db.Session, userID string, req UpdateProfileRequest) (*UserProfile, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	if req.FirstName != nil {
		updates = append(updates, fmt.Sprintf("first_name = $%d", argIndex))
		args = append(args, strings.TrimSpace(*req.FirstName))
		argIndex++
	}
	if req.LastName != nil {
		updates = append(updates, fmt.Sprintf("last_name = $%d", argIndex))
		args = append(args, strings.TrimSpace(*req.LastName))
		argIndex++
	}
	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(updates, ", "), argIndex, profileColumns)

	var out *UserProfile
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		out, err = scanProfile(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return out, nil
}

// AssignMembership upserts the (user, tenant) membership after checking that
// both exist and the tenant is active, all in one transaction.
func (r *Repository) AssignMembership(ctx context.Context, sess db.Session, req AssignUserRequest) (*Membership, error) {
	var m Membership
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_profiles WHERE id = $1)`, req.UserID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM tenants WHERE id = $1 AND deleted_at IS NULL`, req.TenantID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTenantNotFound
		}
		if err != nil {
			return err
		}
		if status != "active" {
			return ErrTenantInactive
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO tenant_users (user_id, tenant_id, role, is_active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (user_id, tenant_id)
			DO UPDATE SET role = EXCLUDED.role, is_active = TRUE, updated_at = NOW()
			RETURNING user_id, tenant_id, role, is_active, created_at
		`, req.UserID, req.TenantID, req.Role).Scan(&m.UserID, &m.TenantID, &m.Role, &m.IsActive, &m.CreatedAt)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrTenantInactive):
			return nil, err
		}
		switch db.ErrorCode(err) {
		case db.CodeInsufficientPrivilege:
			return nil, ErrForbidden
		case db.CodeInvalidTextRepr:
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to assign user to tenant: %w", err)
	}
	return &m, nil
}

func (r *Repository) RemoveMembership(ctx context.Context, sess db.Session, tenantID, userID string) error {
	var affected int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if db.IsRLSViolation(err) {
			return ErrForbidden
		}
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	// row-level security hides rows the caller may not delete
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, sess db.Session, tenantID string, limit, offset int, search string) ([]Member, int, error) {
	whereClause := "WHERE tu.tenant_id = $1"
	filterArgs := []interface{}{tenantID}
	argIndex := 2

	if search != "" {
		whereClause += fmt.Sprintf(` AND (up.email ILIKE $%d OR up.first_name ILIKE $%d OR up.last_name ILIKE $%d)`,
			argIndex, argIndex, argIndex)
		filterArgs = append(filterArgs, "%"+search+"%")
		argIndex++
	}

	from := `FROM tenant_users tu JOIN user_profiles up ON up.id = tu.user_id `
	countQuery := `SELECT COUNT(*) ` + from + whereClause
	query := fmt.Sprintf(`
		SELECT tu.user_id, up.email, up.first_name, up.last_name, tu.role, tu.is_active, tu.created_at
		%s%s
		ORDER BY up.last_name, up.first_name
		LIMIT $%d OFFSET $%d
	`, from, whereClause, argIndex, argIndex+1)

	var members []Member
	var total int
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}

		args := append(append([]interface{}{}, filterArgs...), limit, offset)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query members: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m Member
			if err := rows.Scan(&m.UserID, &m.Email, &m.FirstName, &m.LastName, &m.Role, &m.IsActive, &m.JoinedAt); err != nil {
				return fmt.Errorf("failed to scan member: %w", err)
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *Repository) ListUserTenants(ctx context.Context, sess db.Session, userID string) ([]UserTenant, error) {
	query := `
		SELECT t.id, t.name, t.subdomain, t.tenant_type, t.parent_tenant_id, tu.role, tu.is_active
		FROM tenant_users tu
		JOIN tenants t ON t.id = tu.tenant_id
		WHERE tu.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.name
	`
	var out []UserTenant
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ut UserTenant
			var parent sql.NullString
			if err := rows.Scan(&ut.TenantID, &ut.Name, &ut.Subdomain, &ut.TenantType, &parent, &ut.Role, &ut.IsActive); err != nil {
				return err
			}
			if parent.Valid {
				ut.ParentTenantID = &parent.String
			}
			out = append(out, ut)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list user tenants: %w", err)
	}
	return out, nil
}
