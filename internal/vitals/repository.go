package vitals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haccare/emr-service/internal/db"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const vitalsColumns = `id, tenant_id, patient_id, temperature, systolic, diastolic, heart_rate,
	respiratory_rate, oxygen_saturation, recorded_at, COALESCE(recorded_by::text, ''), created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVitals(row rowScanner, extra ...interface{}) (*VitalSigns, error) {
	var v VitalSigns
	var temp sql.NullFloat64
	var sys, dia, hr, rr, spo2 sql.NullInt64

	dest := []interface{}{
		&v.ID, &v.TenantID, &v.PatientID, &temp, &sys, &dia, &hr,
		&rr, &spo2, &v.RecordedAt, &v.RecordedBy, &v.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if temp.Valid {
		v.Temperature = &temp.Float64
	}
	v.Systolic = intPtr(sys)
	v.Diastolic = intPtr(dia)
	v.HeartRate = intPtr(hr)
	v.RespiratoryRate = intPtr(rr)
	v.OxygenSaturation = intPtr(spo2)
	return &v, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableUUID(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Insert goes through a CTE so the patient name comes back in the same
// round trip; a patient outside the tenant yields no row.
func (r *Repository) Insert(ctx context.Context, sess db.Session, v *VitalSigns) (*VitalSigns, string, error) {
	query := `
		WITH ins AS (
			INSERT INTO vital_signs (
				tenant_id, patient_id, temperature, systolic, diastolic, heart_rate,
				respiratory_rate, oxygen_saturation, recorded_at, recorded_by
			)
			SELECT p.tenant_id, p.id, $3, $4, $5, $6, $7, $8, $9, $10
			FROM patients p
			WHERE p.tenant_id = $1 AND p.id = $2 AND p.deleted_at IS NULL
			RETURNING ` + vitalsColumns + `
		)
		SELECT ins.*, p.first_name || ' ' || p.last_name
		FROM ins JOIN patients p ON p.id = ins.patient_id`

	var saved *VitalSigns
	var patientName string
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		saved, err = scanVitals(tx.QueryRowContext(ctx, query,
			v.TenantID, v.PatientID, nullableFloat(v.Temperature), nullableInt(v.Systolic),
			nullableInt(v.Diastolic), nullableInt(v.HeartRate), nullableInt(v.RespiratoryRate),
			nullableInt(v.OxygenSaturation), v.RecordedAt, nullableUUID(v.RecordedBy),
		), &patientName)
		return err
	})
	switch {
	case errors.Is(err, sql.ErrNoRows), db.ErrorCode(err) == db.CodeInvalidTextRepr:
		return nil, "", ErrPatientNotFound
	case db.ErrorCode(err) == db.CodeInsufficientPrivilege:
		return nil, "", ErrForbidden
	case err != nil:
		return nil, "", fmt.Errorf("failed to insert vital signs: %w", err)
	}
	return saved, patientName, nil
}

func (r *Repository) ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID string, limit int) ([]VitalSigns, error) {
	query := `SELECT ` + vitalsColumns + `
		FROM vital_signs
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $3`

	var out []VitalSigns
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID, patientID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVitals(rows)
			if err != nil {
				return fmt.Errorf("failed to scan vital signs: %w", err)
			}
			out = append(out, *v)
		}
		return rows.Err()
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list vital signs: %w", err)
	}
	return out, nil
}

func (r *Repository) GetVitals(ctx context.Context, sess db.Session, tenantID, id string) (*VitalSigns, error) {
	query := `SELECT ` + vitalsColumns + ` FROM vital_signs WHERE tenant_id = $1 AND id = $2`

	var v *VitalSigns
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		v, err = scanVitals(tx.QueryRowContext(ctx, query, tenantID, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrVitalsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vital signs: %w", err)
	}
	return v, nil
}

func (r *Repository) DeleteVitals(ctx context.Context, sess db.Session, tenantID, id string) error {
	var affected int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM vital_signs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return ErrVitalsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete vital signs: %w", err)
	}
	if affected == 0 {
		return ErrVitalsNotFound
	}
	return nil
}
