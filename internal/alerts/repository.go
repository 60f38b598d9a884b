package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/db"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const alertColumns = `id, tenant_id, COALESCE(patient_id::text, ''), COALESCE(patient_name, ''), type,
	COALESCE(source_id, ''), message, priority, acknowledged, COALESCE(acknowledged_by::text, ''),
	acknowledged_at, expires_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	var ackAt, expires sql.NullTime
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.PatientID, &a.PatientName, &a.Type,
		&a.SourceID, &a.Message, &a.Priority, &a.Acknowledged, &a.AcknowledgedBy,
		&ackAt, &expires, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if ackAt.Valid {
		a.AcknowledgedAt = &ackAt.Time
	}
	if expires.Valid {
		a.ExpiresAt = &expires.Time
	}
	return &a, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repository) Insert(ctx context.Context, sess db.Session, a *Alert) (*Alert, bool, error) {
	query := `
		INSERT INTO alerts (tenant_id, patient_id, patient_name, type, source_id, message, priority, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, type, source_id) WHERE source_id IS NOT NULL
		DO NOTHING
		RETURNING ` + alertColumns

	var expires interface{}
	if a.ExpiresAt != nil {
		expires = *a.ExpiresAt
	}

	var saved *Alert
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		saved, err = scanAlert(tx.QueryRowContext(ctx, query,
			a.TenantID, nullable(a.PatientID), nullable(a.PatientName), a.Type,
			nullable(a.SourceID), a.Message, a.Priority, expires,
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		switch db.ErrorCode(err) {
		case db.CodeInsufficientPrivilege:
			return nil, false, ErrForbidden
		case db.CodeNotNullViolation:
			return nil, false, ErrMissingTenant
		}
		return nil, false, fmt.Errorf("failed to insert alert: %w", err)
	}
	return saved, true, nil
}

// ListActive returns unacknowledged, unexpired alerts, most urgent first.
// patientID narrows the list when set.
func (r *Repository) ListActive(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE tenant_id = $1 AND acknowledged = FALSE AND (expires_at IS NULL OR expires_at > $2)`
	args := []interface{}{tenantID, now}
	if patientID != "" {
		query += ` AND patient_id = $3`
		args = append(args, patientID)
	}
	query += `
		ORDER BY CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			created_at DESC`

	var out []Alert
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAlert(rows)
			if err != nil {
				return fmt.Errorf("failed to scan alert: %w", err)
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return out, nil
}

func (r *Repository) GetAlert(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error) {
	var a *Alert
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		a, err = scanAlert(tx.QueryRowContext(ctx,
			`SELECT `+alertColumns+` FROM alerts WHERE tenant_id = $1 AND id = $2`, tenantID, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return a, nil
}

func (r *Repository) Acknowledge(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error) {
	query := `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $3, acknowledged_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND acknowledged = FALSE
		RETURNING ` + alertColumns

	var a *Alert
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		a, err = scanAlert(tx.QueryRowContext(ctx, query, tenantID, id, nullable(userID)))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyAcknowledged
	}
	if err != nil {
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return a, nil
}

// DeleteAcknowledgedBefore purges acknowledged or expired alerts older than
// before across all tenants the session can see.
func (r *Repository) DeleteAcknowledgedBefore(ctx context.Context, sess db.Session, before time.Time) (int64, error) {
	var n int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM alerts
			WHERE (acknowledged = TRUE AND acknowledged_at < $1)
			   OR (expires_at IS NOT NULL AND expires_at < $1)`, before)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge alerts: %w", err)
	}
	return n, nil
}
