package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/haccare/emr-service/internal/db"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const patientColumns = `id, tenant_id, record_number, first_name, last_name,
	to_char(date_of_birth, 'YYYY-MM-DD'), COALESCE(gender, ''), COALESCE(room_number, ''), COALESCE(bed_number, ''),
	to_char(admission_date, 'YYYY-MM-DD'), COALESCE(attending_physician, ''), COALESCE(diagnosis, ''), allergies,
	COALESCE(blood_type, ''), condition, COALESCE(emergency_contact_name, ''), COALESCE(emergency_contact_phone, ''),
	COALESCE(notes, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var dob, admitted sql.NullString
	var updatedAt sql.NullTime

	if err := row.Scan(
		&p.ID, &p.TenantID, &p.RecordNumber, &p.FirstName, &p.LastName,
		&dob, &p.Gender, &p.RoomNumber, &p.BedNumber,
		&admitted, &p.AttendingPhysician, &p.Diagnosis, pq.Array(&p.Allergies),
		&p.BloodType, &p.Condition, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.Notes, &p.CreatedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if dob.Valid {
		p.DateOfBirth = &dob.String
	}
	if admitted.Valid {
		p.AdmissionDate = &admitted.String
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return &p, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nextRecordNumberQuery numbers patients per tenant. Soft-deleted patients
// keep their number so a wristband is never reused.
const nextRecordNumberQuery = `
	SELECT COALESCE(MAX(record_number::int), 0) + 1
	FROM patients
	WHERE tenant_id = $1 AND record_number ~ '^[0-9]+$'
`

// CreatePatient assigns the next record number and inserts the patient in
// one transaction. A transaction-scoped advisory lock serialises numbering
// within a tenant.
func (r *Repository) CreatePatient(ctx context.Context, sess db.Session, tenantID string, req CreatePatientRequest) (*Patient, error) {
	var p *Patient
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID); err != nil {
			return fmt.Errorf("failed to lock record numbers: %w", err)
		}

		var next int
		if err := tx.QueryRowContext(ctx, nextRecordNumberQuery, tenantID).Scan(&next); err != nil {
			return fmt.Errorf("failed to compute record number: %w", err)
		}

		query := `
			INSERT INTO patients (
				tenant_id, record_number, first_name, last_name, date_of_birth, gender,
				room_number, bed_number, admission_date, attending_physician, diagnosis,
				allergies, blood_type, condition, emergency_contact_name, emergency_contact_phone, notes
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING ` + patientColumns

		var err error
		p, err = scanPatient(tx.QueryRowContext(ctx, query,
			tenantID, FormatRecordNumber(next), req.FirstName, req.LastName,
			nullable(req.DateOfBirth), nullable(req.Gender), nullable(req.RoomNumber), nullable(req.BedNumber),
			nullable(req.AdmissionDate), nullable(req.AttendingPhysician), nullable(req.Diagnosis),
			pq.Array(req.Allergies), nullable(req.BloodType), req.Condition,
			nullable(req.EmergencyContactName), nullable(req.EmergencyContactPhone), nullable(req.Notes),
		))
		return err
	})
	if err != nil {
		switch db.ErrorCode(err) {
		case db.CodeUniqueViolation:
			return nil, ErrRecordNumberTaken
		case db.CodeInsufficientPrivilege:
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPatients(ctx context.Context, sess db.Session, tenantID string, limit, offset int, filter ListFilter) ([]Patient, int, error) {
	whereClause := "WHERE tenant_id = $1 AND deleted_at IS NULL"
	filterArgs := []interface{}{tenantID}
	argIndex := 2

	if filter.Search != "" {
		whereClause += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR record_number ILIKE $%d OR room_number ILIKE $%d)`,
			argIndex, argIndex, argIndex, argIndex)
		filterArgs = append(filterArgs, "%"+filter.Search+"%")
		argIndex++
	}
	if filter.Condition != "" {
		whereClause += fmt.Sprintf(` AND condition = $%d`, argIndex)
		filterArgs = append(filterArgs, filter.Condition)
		argIndex++
	}

	countQuery := `SELECT COUNT(*) FROM patients ` + whereClause
	query := fmt.Sprintf(`
		SELECT %s
		FROM patients
		%s
		ORDER BY record_number
		LIMIT $%d OFFSET $%d
	`, patientColumns, whereClause, argIndex, argIndex+1)

	var patients []Patient
	var total int
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count patients: %w", err)
		}

		args := append(append([]interface{}{}, filterArgs...), limit, offset)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query patients: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPatient(rows)
			if err != nil {
				return fmt.Errorf("failed to scan patient: %w", err)
			}
			patients = append(patients, *p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *Repository) getOne(ctx context.Context, sess db.Session, where string, args ...interface{}) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE ` + where + ` AND deleted_at IS NULL`

	var p *Patient
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		p, err = scanPatient(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}
	return p, nil
}

func (r *Repository) GetPatient(ctx context.Context, sess db.Session, tenantID, id string) (*Patient, error) {
	return r.getOne(ctx, sess, `tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *Repository) GetByRecordNumber(ctx context.Context, sess db.Session, tenantID, recordNumber string) (*Patient, error) {
	return r.getOne(ctx, sess, `tenant_id = $1 AND record_number = $2`, tenantID, recordNumber)
}

func (r *Repository) UpdatePatient(ctx context.Context, sess db.Session, tenantID, id string, req UpdatePatientRequest) (*Patient, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	set := func(column string, value interface{}) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if req.FirstName != nil {
		set("first_name", strings.TrimSpace(*req.FirstName))
	}
	if req.LastName != nil {
		set("last_name", strings.TrimSpace(*req.LastName))
	}
	if req.DateOfBirth != nil {
		set("date_of_birth", nullable(*req.DateOfBirth))
	}
	if req.Gender != nil {
		set("gender", nullable(*req.Gender))
	}
	if req.RoomNumber != nil {
		set("room_number", nullable(*req.RoomNumber))
	}
	if req.BedNumber != nil {
		set("bed_number", nullable(*req.BedNumber))
	}
	if req.AdmissionDate != nil {
		set("admission_date", nullable(*req.AdmissionDate))
	}
	if req.AttendingPhysician != nil {
		set("attending_physician", nullable(*req.AttendingPhysician))
	}
	if req.Diagnosis != nil {
		set("diagnosis", nullable(*req.Diagnosis))
	}
	if req.Allergies != nil {
		set("allergies", pq.Array(*req.Allergies))
	}
	if req.BloodType != nil {
		set("blood_type", nullable(*req.BloodType))
	}
	if req.Condition != nil {
		set("condition", *req.Condition)
	}
	if req.EmergencyContactName != nil {
		set("emergency_contact_name", nullable(*req.EmergencyContactName))
	}
	if req.EmergencyContactPhone != nil {
		set("emergency_contact_phone", nullable(*req.EmergencyContactPhone))
	}
	if req.Notes != nil {
		set("notes", nullable(*req.Notes))
	}

	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, tenantID, id)

	query := fmt.Sprintf(`
		UPDATE patients
		SET %s
		WHERE tenant_id = $%d AND id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, strings.Join(updates, ", "), argIndex, argIndex+1, patientColumns)

	var p *Patient
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		p, err = scanPatient(tx.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		if db.IsRLSViolation(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return p, nil
}

// DeletePatient soft-deletes the patient and returns its final state.
func (r *Repository) DeletePatient(ctx context.Context, sess db.Session, tenantID, id string) (*Patient, error) {
	query := `
		UPDATE patients
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING ` + patientColumns

	var p *Patient
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		p, err = scanPatient(tx.QueryRowContext(ctx, query, tenantID, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete patient: %w", err)
	}
	return p, nil
}
