package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/db"
	"github.com/rs/zerolog/log"
)

// RetentionPeriod defines how long deleted tenants are retained (3 years)
const RetentionPeriod = 3 * 365 * 24 * time.Hour

var cleanupSession = db.Session{SuperAdmin: true}

// CleanupService permanently removes tenants soft-deleted longer than
// RetentionPeriod. Foreign keys cascade to every tenant-owned row.
type CleanupService struct {
	db  *sql.DB
	now func() time.Time
}

func NewCleanupService(conn *sql.DB) *CleanupService {
	return &CleanupService{db: conn, now: time.Now}
}

func (s *CleanupService) cutoff() time.Time {
	return s.now().Add(-RetentionPeriod)
}

// CleanupExpiredTenants deletes each expired tenant in its own transaction
// and returns how many were removed. A failure on one tenant is logged and
// does not stop the others.
func (s *CleanupService) CleanupExpiredTenants(ctx context.Context) (int, error) {
	cutoff := s.cutoff()
	log.Info().Time("cutoff", cutoff).Msg("starting cleanup of deleted tenants")

	var expired []string
	err := db.WithSession(ctx, s.db, cleanupSession, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id
			FROM tenants
			WHERE deleted_at IS NOT NULL AND deleted_at < $1
			ORDER BY deleted_at ASC
		`, cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			expired = append(expired, id)
		}
		return rows.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query expired tenants: %w", err)
	}

	if len(expired) == 0 {
		log.Info().Msg("no expired tenants found for cleanup")
		return 0, nil
	}

	deleted := 0
	for _, id := range expired {
		if err := s.permanentlyDeleteTenant(ctx, id); err != nil {
			log.Error().Err(err).Str("tenant_id", id).Msg("failed to delete tenant")
			continue
		}
		deleted++
	}

	log.Info().Int("deleted", deleted).Int("expired", len(expired)).Msg("tenant cleanup finished")
	return deleted, nil
}

func (s *CleanupService) permanentlyDeleteTenant(ctx context.Context, id string) error {
	return db.WithSession(ctx, s.db, cleanupSession, func(tx *sql.Tx) error {
		// simulations go with their parent
		result, err := tx.ExecContext(ctx,
			`DELETE FROM tenants WHERE id = $1 AND deleted_at IS NOT NULL`, id)
		if err != nil {
			return fmt.Errorf("failed to delete tenant record: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("tenant not found or not soft-deleted")
		}
		return nil
	})
}

// GetExpiredTenantsCount returns how many tenants are eligible for cleanup.
func (s *CleanupService) GetExpiredTenantsCount(ctx context.Context) (int, error) {
	var count int
	err := db.WithSession(ctx, s.db, cleanupSession, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM tenants
			WHERE deleted_at IS NOT NULL AND deleted_at < $1
		`, s.cutoff()).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count expired tenants: %w", err)
	}
	return count, nil
}
