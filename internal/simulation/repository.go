package simulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/db"
)

type RepositoryInterface interface {
	CaptureBaseline(ctx context.Context, sess db.Session, tenantID string, at time.Time) (int, error)
	ResetRun(ctx context.Context, sess db.Session, tenantID string, at time.Time) (*ResetSummary, error)
}

type Repository struct {
	db *sql.DB
}

var _ RepositoryInterface = (*Repository)(nil)

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

// CaptureBaseline replaces the tenant's baseline with the current state of
// its medications. next_due is stored as an offset from at.
func (r *Repository) CaptureBaseline(ctx context.Context, sess db.Session, tenantID string, at time.Time) (int, error) {
	var captured int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM simulation_baselines WHERE tenant_id = $1`, tenantID); err != nil {
			return fmt.Errorf("failed to clear baseline: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO simulation_baselines (tenant_id, medication_id, status, next_due_offset_seconds, captured_at)
			SELECT tenant_id, id, status,
				CASE WHEN next_due IS NULL THEN NULL ELSE EXTRACT(EPOCH FROM (next_due - $2))::BIGINT END,
				$2
			FROM medications
			WHERE tenant_id = $1`, tenantID, at)
		if err != nil {
			return fmt.Errorf("failed to capture baseline: %w", err)
		}
		captured, err = res.RowsAffected()
		return err
	})
	if db.IsRLSViolation(err) {
		return 0, ErrForbidden
	}
	if err != nil {
		return 0, err
	}
	return int(captured), nil
}

// resetSteps run in order inside the reset transaction; each returns the
// number of rows it cleared.
var resetSteps = []struct {
	name  string
	query string
}{
	{"alerts", `DELETE FROM alerts WHERE tenant_id = $1`},
	{"notes", `DELETE FROM patient_notes WHERE tenant_id = $1`},
	{"vitals", `DELETE FROM vital_signs WHERE tenant_id = $1`},
	{"administrations", `DELETE FROM medication_administrations WHERE tenant_id = $1`},
}

// ResetRun clears the run's charting and restores medications from the
// baseline, all in one transaction. The tenant row is locked first so two
// resets of the same simulation serialize.
func (r *Repository) ResetRun(ctx context.Context, sess db.Session, tenantID string, at time.Time) (*ResetSummary, error) {
	summary := &ResetSummary{TenantID: tenantID, ResetAt: at}

	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var tenantType string
		err := tx.QueryRowContext(ctx,
			`SELECT tenant_type FROM tenants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, tenantID,
		).Scan(&tenantType)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTenantNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock tenant: %w", err)
		}
		if tenantType != "simulation" {
			return ErrNotSimulation
		}

		var baselineRows int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM simulation_baselines WHERE tenant_id = $1`, tenantID,
		).Scan(&baselineRows); err != nil {
			return fmt.Errorf("failed to count baseline: %w", err)
		}
		if baselineRows == 0 {
			return ErrNoBaseline
		}

		cleared := map[string]*int{
			"alerts":          &summary.AlertsCleared,
			"notes":           &summary.NotesCleared,
			"vitals":          &summary.VitalsCleared,
			"administrations": &summary.AdministrationsCleared,
		}
		for _, step := range resetSteps {
			res, err := tx.ExecContext(ctx, step.query, tenantID)
			if err != nil {
				return fmt.Errorf("failed to clear %s: %w", step.name, err)
			}
			n, _ := res.RowsAffected()
			*cleared[step.name] = int(n)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE medications m
			SET status = b.status,
				next_due = CASE
					WHEN b.next_due_offset_seconds IS NULL THEN NULL
					ELSE $2::timestamptz + b.next_due_offset_seconds * INTERVAL '1 second'
				END,
				last_administered_at = NULL,
				updated_at = $2
			FROM simulation_baselines b
			WHERE b.tenant_id = $1 AND m.tenant_id = $1 AND m.id = b.medication_id`, tenantID, at)
		if err != nil {
			return fmt.Errorf("failed to restore medications: %w", err)
		}
		restored, _ := res.RowsAffected()
		summary.MedicationsRestored = int(restored)

		return tx.QueryRowContext(ctx,
			`UPDATE tenants SET run_number = run_number + 1, last_reset_at = $2 WHERE id = $1 RETURNING run_number`,
			tenantID, at,
		).Scan(&summary.RunNumber)
	})
	if db.IsRLSViolation(err) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}
