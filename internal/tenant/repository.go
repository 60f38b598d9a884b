package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/rs/zerolog/log"
)

type Repository struct {
	db        *sql.DB
	publisher messaging.PublisherInterface
}

func NewRepository(conn *sql.DB, publisher messaging.PublisherInterface) *Repository {
	return &Repository{db: conn, publisher: publisher}
}

const tenantColumns = `id, name, subdomain, tenant_type, parent_tenant_id, status, settings, run_number, last_reset_at, created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var parent sql.NullString
	var settings []byte
	var lastReset, deletedAt sql.NullTime

	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Subdomain,
		&t.TenantType,
		&parent,
		&t.Status,
		&settings,
		&t.RunNumber,
		&lastReset,
		&t.CreatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	if parent.Valid {
		t.ParentTenantID = &parent.String
	}
	if lastReset.Valid {
		t.LastResetAt = &lastReset.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	return &t, nil
}

func encodeSettings(s map[string]interface{}) ([]byte, error) {
	if s == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(s)
}

func (r *Repository) CreateTenant(ctx context.Context, sess db.Session, req CreateTenantRequest) (*Tenant, error) {
	settings, err := encodeSettings(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	var parent interface{}
	if req.ParentTenantID != "" {
		parent = req.ParentTenantID
	}

	query := `
		INSERT INTO tenants (name, subdomain, tenant_type, parent_tenant_id, status, settings)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING ` + tenantColumns

	var t *Tenant
	err = db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		t, err = scanTenant(tx.QueryRowContext(ctx, query,
			req.Name, req.Subdomain, req.TenantType, parent, settings,
		))
		return err
	})
	if err != nil {
		switch db.ErrorCode(err) {
		case db.CodeUniqueViolation:
			return nil, ErrDuplicateTenant
		case db.CodeInsufficientPrivilege:
			return nil, ErrForbidden
		case db.CodeCheckViolation:
			return nil, ErrParentRequired
		}
		return nil, fmt.Errorf("failed to insert tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns the tenants visible to sess. Row-level security hides
// tenants the caller has no access to.
func (r *Repository) ListTenants(ctx context.Context, sess db.Session, limit, offset int, filter ListFilter) ([]Tenant, int, error) {
	whereClause := "WHERE deleted_at IS NULL"
	var filterArgs []interface{}
	argIndex := 1

	if filter.Search != "" {
		whereClause += fmt.Sprintf(` AND (name ILIKE $%d OR subdomain ILIKE $%d)`, argIndex, argIndex)
		filterArgs = append(filterArgs, "%"+filter.Search+"%")
		argIndex++
	}
	if filter.Status != "" && filter.Status != "all" {
		whereClause += fmt.Sprintf(` AND status = $%d`, argIndex)
		filterArgs = append(filterArgs, filter.Status)
		argIndex++
	}
	if filter.Type != "" {
		whereClause += fmt.Sprintf(` AND tenant_type = $%d`, argIndex)
		filterArgs = append(filterArgs, filter.Type)
		argIndex++
	}

	countQuery := `SELECT COUNT(*) FROM tenants ` + whereClause
	query := fmt.Sprintf(`
		SELECT %s
		FROM tenants
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, tenantColumns, whereClause, argIndex, argIndex+1)

	var tenants []Tenant
	var total int
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count tenants: %w", err)
		}

		args := append(append([]interface{}{}, filterArgs...), limit, offset)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query tenants: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTenant(rows)
			if err != nil {
				return fmt.Errorf("failed to scan tenant: %w", err)
			}
			tenants = append(tenants, *t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

func (r *Repository) GetTenant(ctx context.Context, sess db.Session, id string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL`

	var t *Tenant
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		t, err = scanTenant(tx.QueryRowContext(ctx, query, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return t, nil
}

func (r *Repository) UpdateTenant(ctx context.Context, sess db.Session, id string, req UpdateTenantRequest) (*Tenant, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	if req.Name != nil {
		updates = append(updates, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *req.Name)
		argIndex++
	}
	if req.Status != nil {
		updates = append(updates, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *req.Status)
		argIndex++
	}
	if req.Settings != nil {
		settings, err := encodeSettings(req.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode settings: %w", err)
		}
		updates = append(updates, fmt.Sprintf("settings = $%d", argIndex))
		args = append(args, settings)
		argIndex++
	}

	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}

	updates = append(updates, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now())
	argIndex++
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE tenants
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, strings.Join(updates, ", "), argIndex, tenantColumns)

	var t *Tenant
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		t, err = scanTenant(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return t, nil
}

// DeleteTenant soft-deletes the tenant and returns the users who were members
// of it. Its data is kept until the cleanup job purges it after
// RetentionPeriod.
func (r *Repository) DeleteTenant(ctx context.Context, sess db.Session, id string) ([]string, error) {
	query := `
		UPDATE tenants
		SET deleted_at = $1, status = 'suspended', updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING name, subdomain
	`

	deletedAt := time.Now()
	var name, subdomain string
	var members []string
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, query, deletedAt, id).Scan(&name, &subdomain); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `SELECT user_id FROM tenant_users WHERE tenant_id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				return err
			}
			members = append(members, userID)
		}
		return rows.Err()
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to soft delete tenant: %w", err)
	}

	if r.publisher != nil {
		event := messaging.TenantDeletedEvent{
			BaseEvent: messaging.NewBaseEvent(messaging.EventTenantDeleted, id),
			Data: messaging.TenantDeletedData{
				TenantName: name,
				Subdomain:  subdomain,
				DeletedAt:  deletedAt,
			},
		}
		if err := r.publisher.Publish(ctx, messaging.EventTenantDeleted, event); err != nil {
			log.Warn().Err(err).Str("tenant_id", id).Msg("failed to publish tenant.deleted event")
		}
	}
	return members, nil
}

// ListActiveTenantIDs returns every live, active tenant. Used by background
// jobs that run outside a request.
func (r *Repository) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := db.WithSession(ctx, r.db, db.Session{SuperAdmin: true}, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM tenants WHERE deleted_at IS NULL AND status = 'active' ORDER BY created_at`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return ids, nil
}
