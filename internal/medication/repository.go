package medication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/db"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const columnTemplate = `{t}id, {t}tenant_id, {t}patient_id, {t}name, {t}dosage, {t}route, {t}frequency,
	{t}category, {t}status, COALESCE({t}rate, ''), to_char({t}start_date, 'YYYY-MM-DD'), to_char({t}end_date, 'YYYY-MM-DD'),
	{t}next_due, {t}last_administered_at, COALESCE({t}prescribed_by, ''), {t}barcode, {t}created_at, {t}updated_at`

// columns returns the medication select list, qualified by alias when set.
func columns(alias string) string {
	if alias != "" {
		alias += "."
	}
	return strings.ReplaceAll(columnTemplate, "{t}", alias)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedication(row rowScanner, extra ...interface{}) (*Medication, error) {
	var m Medication
	var start, end sql.NullString
	var nextDue, lastGiven, updatedAt sql.NullTime

	dest := []interface{}{
		&m.ID, &m.TenantID, &m.PatientID, &m.Name, &m.Dosage, &m.Route, &m.Frequency,
		&m.Category, &m.Status, &m.Rate, &start, &end,
		&nextDue, &lastGiven, &m.PrescribedBy, &m.Barcode, &m.CreatedAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if start.Valid {
		m.StartDate = &start.String
	}
	if end.Valid {
		m.EndDate = &end.String
	}
	if nextDue.Valid {
		m.NextDue = &nextDue.Time
	}
	if lastGiven.Valid {
		m.LastAdministeredAt = &lastGiven.Time
	}
	if updatedAt.Valid {
		m.UpdatedAt = &updatedAt.Time
	}
	return &m, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func mapWriteError(err error) error {
	switch db.ErrorCode(err) {
	case db.CodeUniqueViolation:
		return ErrBarcodeTaken
	case db.CodeCheckViolation:
		return ErrPRNNextDue
	case db.CodeInsufficientPrivilege:
		return ErrForbidden
	case db.CodeInvalidTextRepr:
		return ErrPatientNotFound
	}
	return err
}

// CreateMedication inserts m for its patient. The insert selects from
// patients so a patient outside the tenant reads as missing.
func (r *Repository) CreateMedication(ctx context.Context, sess db.Session, m *Medication) (*Medication, error) {
	query := `
		INSERT INTO medications (
			tenant_id, patient_id, name, dosage, route, frequency, category, status,
			rate, start_date, end_date, next_due, prescribed_by, barcode
		)
		SELECT p.tenant_id, p.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		FROM patients p
		WHERE p.tenant_id = $1 AND p.id = $2 AND p.deleted_at IS NULL
		RETURNING ` + columns("")

	var created *Medication
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		created, err = scanMedication(tx.QueryRowContext(ctx, query,
			m.TenantID, m.PatientID, m.Name, m.Dosage, m.Route, m.Frequency, m.Category, m.Status,
			nullable(m.Rate), nullableDate(m.StartDate), nullableDate(m.EndDate), nullableTime(m.NextDue),
			nullable(m.PrescribedBy), m.Barcode,
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to insert medication: %w", err)
	}
	return created, nil
}

func (r *Repository) ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID, status string) ([]Medication, error) {
	query := `SELECT ` + columns("") + ` FROM medications WHERE tenant_id = $1 AND patient_id = $2`
	args := []interface{}{tenantID, patientID}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, status)
	}
	query += ` ORDER BY next_due NULLS LAST, name`

	var meds []Medication
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMedication(rows)
			if err != nil {
				return fmt.Errorf("failed to scan medication: %w", err)
			}
			meds = append(meds, *m)
		}
		return rows.Err()
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

func (r *Repository) GetMedication(ctx context.Context, sess db.Session, tenantID, id string) (*Medication, error) {
	query := `SELECT ` + columns("") + ` FROM medications WHERE tenant_id = $1 AND id = $2`

	var m *Medication
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		m, err = scanMedication(tx.QueryRowContext(ctx, query, tenantID, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrMedicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query medication: %w", err)
	}
	return m, nil
}

// UpdateMedication writes every mutable column of m.
func (r *Repository) UpdateMedication(ctx context.Context, sess db.Session, m *Medication) (*Medication, error) {
	query := `
		UPDATE medications
		SET name = $3, dosage = $4, route = $5, frequency = $6, category = $7, status = $8,
			rate = $9, start_date = $10, end_date = $11, next_due = $12, prescribed_by = $13,
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + columns("")

	var updated *Medication
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		updated, err = scanMedication(tx.QueryRowContext(ctx, query,
			m.TenantID, m.ID, m.Name, m.Dosage, m.Route, m.Frequency, m.Category, m.Status,
			nullable(m.Rate), nullableDate(m.StartDate), nullableDate(m.EndDate), nullableTime(m.NextDue),
			nullable(m.PrescribedBy),
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMedicationNotFound
	}
	if err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteMedication(ctx context.Context, sess db.Session, tenantID, id string) error {
	var affected int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM medications WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return ErrMedicationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if affected == 0 {
		return ErrMedicationNotFound
	}
	return nil
}

func (r *Repository) PatientRecordNumber(ctx context.Context, sess db.Session, tenantID, patientID string) (string, error) {
	var recordNumber string
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`SELECT record_number FROM patients WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
			tenantID, patientID,
		).Scan(&recordNumber)
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return "", ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query patient: %w", err)
	}
	return recordNumber, nil
}

// RecordAdministration inserts a and moves the medication to nextDue/status
// in one transaction. The update only matches an active medication, so a
// concurrent discontinue wins.
func (r *Repository) RecordAdministration(ctx context.Context, sess db.Session, a *Administration, nextDue *time.Time, status string) (*Administration, *Medication, error) {
	updateQuery := `
		UPDATE medications
		SET last_administered_at = $3, next_due = $4, status = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = 'active'
		RETURNING ` + columns("")

	insertQuery := `
		INSERT INTO medication_administrations (
			tenant_id, medication_id, patient_id, administered_by, administered_by_name,
			administered_at, dose, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	var m *Medication
	saved := *a
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		m, err = scanMedication(tx.QueryRowContext(ctx, updateQuery,
			a.TenantID, a.MedicationID, a.AdministeredAt, nullableTime(nextDue), status,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMedicationInactive
		}
		if err != nil {
			return fmt.Errorf("failed to update medication: %w", err)
		}

		return tx.QueryRowContext(ctx, insertQuery,
			a.TenantID, a.MedicationID, a.PatientID, nullable(a.AdministeredBy), nullable(a.AdministeredByName),
			a.AdministeredAt, nullable(a.Dose), nullable(a.Notes),
		).Scan(&saved.ID, &saved.CreatedAt)
	})
	if err != nil {
		if db.IsRLSViolation(err) {
			return nil, nil, ErrForbidden
		}
		return nil, nil, err
	}
	return &saved, m, nil
}

func (r *Repository) ListAdministrations(ctx context.Context, sess db.Session, tenantID, medicationID string, limit int) ([]Administration, error) {
	query := `
		SELECT id, tenant_id, medication_id, patient_id, COALESCE(administered_by::text, ''),
			COALESCE(administered_by_name, ''), administered_at, COALESCE(dose, ''), COALESCE(notes, ''), created_at
		FROM medication_administrations
		WHERE tenant_id = $1 AND medication_id = $2
		ORDER BY administered_at DESC
		LIMIT $3
	`

	var out []Administration
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID, medicationID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var a Administration
			if err := rows.Scan(&a.ID, &a.TenantID, &a.MedicationID, &a.PatientID, &a.AdministeredBy,
				&a.AdministeredByName, &a.AdministeredAt, &a.Dose, &a.Notes, &a.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan administration: %w", err)
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrMedicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list administrations: %w", err)
	}
	return out, nil
}

// ListActiveByTenant returns every active medication of the tenant's
// current patients with the patient's display name.
func (r *Repository) ListActiveByTenant(ctx context.Context, sess db.Session, tenantID string) ([]DueMedication, error) {
	query := `
		SELECT ` + columns("m") + `, p.first_name || ' ' || p.last_name
		FROM medications m
		JOIN patients p ON p.id = m.patient_id AND p.deleted_at IS NULL
		WHERE m.tenant_id = $1 AND m.status = 'active'
		ORDER BY m.patient_id, m.next_due NULLS LAST
	`

	var out []DueMedication
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			m, err := scanMedication(rows, &name)
			if err != nil {
				return fmt.Errorf("failed to scan medication: %w", err)
			}
			out = append(out, DueMedication{Medication: *m, PatientName: name})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}
	return out, nil
}
